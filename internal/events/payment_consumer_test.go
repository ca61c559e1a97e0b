package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConfirmer struct {
	calls []PaymentCapturedEvent
	err   error
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, bookingID uuid.UUID, orderID, paymentID, signature string) error {
	f.calls = append(f.calls, PaymentCapturedEvent{
		BookingID: bookingID,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
	})
	return f.err
}

func capturedMessage(t *testing.T, evt PaymentCapturedEvent) kafkago.Message {
	t.Helper()
	event, err := NewCloudEvent("payment-gateway", PaymentCaptured, evt)
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafkago.Message{Topic: TopicPaymentEvents, Value: value}
}

func TestHandleMessage_PaymentCaptured(t *testing.T) {
	confirmer := &fakeConfirmer{}
	consumer := &PaymentEventConsumer{service: confirmer, logger: zap.NewNop()}

	evt := PaymentCapturedEvent{
		BookingID: uuid.New(),
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "sig",
	}
	require.NoError(t, consumer.handleMessage(context.Background(), capturedMessage(t, evt)))

	require.Len(t, confirmer.calls, 1)
	assert.Equal(t, evt.BookingID, confirmer.calls[0].BookingID)
	assert.Equal(t, "order_1", confirmer.calls[0].OrderID)
	assert.Equal(t, "pay_1", confirmer.calls[0].PaymentID)
	assert.Equal(t, "sig", confirmer.calls[0].Signature)
}

func TestHandleMessage_MalformedEnvelopeIsDropped(t *testing.T) {
	confirmer := &fakeConfirmer{}
	consumer := &PaymentEventConsumer{service: confirmer, logger: zap.NewNop()}

	err := consumer.handleMessage(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.NoError(t, err, "malformed messages are dropped, never retried")
	assert.Empty(t, confirmer.calls)
}

func TestHandleMessage_UnknownTypeIgnored(t *testing.T) {
	confirmer := &fakeConfirmer{}
	consumer := &PaymentEventConsumer{service: confirmer, logger: zap.NewNop()}

	event, err := NewCloudEvent("payment-gateway", "payment.refunded", map[string]string{})
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)

	assert.NoError(t, consumer.handleMessage(context.Background(), kafkago.Message{Value: value}))
	assert.Empty(t, confirmer.calls)
}

func TestHandleMessage_ServiceErrorPropagates(t *testing.T) {
	confirmer := &fakeConfirmer{err: errors.New("db unavailable")}
	consumer := &PaymentEventConsumer{service: confirmer, logger: zap.NewNop()}

	err := consumer.handleMessage(context.Background(), capturedMessage(t, PaymentCapturedEvent{
		BookingID: uuid.New(),
		OrderID:   "order_1",
		PaymentID: "pay_1",
	}))
	assert.Error(t, err, "transient failures stay uncommitted for redelivery")
}
