package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urbancab/service-booking/internal/domain"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// Order is a gateway payment order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is a gateway payment.
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Method  string `json:"method"`
}

// Refund is a gateway refund.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Client talks to the payment gateway's REST API with key-pair basic auth.
// Amounts are in the currency's smallest unit.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient creates a gateway Client.
func NewClient(keyID, keySecret string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL creates a Client against a non-default endpoint.
// Used by tests.
func NewClientWithBaseURL(keyID, keySecret, baseURL string) *Client {
	c := NewClient(keyID, keySecret)
	c.baseURL = baseURL
	return c
}

// VerifySignature checks a checkout callback signature for this client's
// key secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(orderID, paymentID, signature, c.keySecret)
}

// CreateOrder creates a payment order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error) {
	if amount <= 0 {
		return Order{}, domain.NewValidationError("order amount must be positive")
	}
	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// FetchOrder looks up an order by id.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	if !ValidOrderID(orderID) {
		return Order{}, domain.NewValidationError(fmt.Sprintf("malformed order id: %s", orderID))
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// FetchPayment looks up a payment by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	if !ValidPaymentID(paymentID) {
		return Payment{}, domain.NewValidationError(fmt.Sprintf("malformed payment id: %s", paymentID))
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// CreateRefund issues a refund of amount against a captured payment.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount int64) (Refund, error) {
	if !ValidPaymentID(paymentID) {
		return Refund{}, domain.NewValidationError(fmt.Sprintf("malformed payment id: %s", paymentID))
	}
	if amount <= 0 {
		return Refund{}, domain.NewValidationError("refund amount must be positive")
	}
	body := map[string]interface{}{"amount": amount}
	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", body, &refund); err != nil {
		return Refund{}, err
	}
	return refund, nil
}

// FetchRefund looks up a refund by id.
func (c *Client) FetchRefund(ctx context.Context, refundID string) (Refund, error) {
	if !ValidRefundID(refundID) {
		return Refund{}, domain.NewValidationError(fmt.Sprintf("malformed refund id: %s", refundID))
	}
	var refund Refund
	if err := c.do(ctx, http.MethodGet, "/refunds/"+refundID, nil, &refund); err != nil {
		return Refund{}, err
	}
	return refund, nil
}

// do executes one gateway call and maps 400/401/404 responses to distinct
// local error kinds.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewServiceUnavailableError("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusBadRequest:
		return domain.NewValidationError(fmt.Sprintf("payment gateway rejected request to %s", path))
	case http.StatusUnauthorized:
		return domain.NewServiceUnavailableError("payment gateway authentication failed", nil)
	case http.StatusNotFound:
		return domain.NewNotFoundError("gateway resource", path)
	default:
		return domain.NewServiceUnavailableError(fmt.Sprintf("payment gateway returned status %d", resp.StatusCode), nil)
	}
}
