package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Gateway id prefixes. Every lookup validates its id shape before calling
// out.
const (
	paymentIDPrefix = "pay_"
	orderIDPrefix   = "order_"
	refundIDPrefix  = "rfnd_"
)

// ValidPaymentID reports whether id looks like a gateway payment id.
func ValidPaymentID(id string) bool {
	return validGatewayID(id, paymentIDPrefix)
}

// ValidOrderID reports whether id looks like a gateway order id.
func ValidOrderID(id string) bool {
	return validGatewayID(id, orderIDPrefix)
}

// ValidRefundID reports whether id looks like a gateway refund id.
func ValidRefundID(id string) bool {
	return validGatewayID(id, refundIDPrefix)
}

func validGatewayID(id, prefix string) bool {
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}

// SignPayment computes the gateway's HMAC-SHA256 signature over
// "orderID|paymentID".
func SignPayment(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a gateway signature in constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	expected := SignPayment(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
