package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignAndVerifyPaymentSignature(t *testing.T) {
	secret := "key_secret"
	sig := SignPayment("order_abc", "pay_xyz", secret)

	assert.Len(t, sig, 64, "hex-encoded SHA-256")
	assert.True(t, VerifyPaymentSignature("order_abc", "pay_xyz", sig, secret))

	assert.False(t, VerifyPaymentSignature("order_abc", "pay_xyz", sig, "other_secret"))
	assert.False(t, VerifyPaymentSignature("order_abc", "pay_other", sig, secret))
	assert.False(t, VerifyPaymentSignature("order_abc", "pay_xyz", "tampered", secret))
	assert.False(t, VerifyPaymentSignature("order_abc", "pay_xyz", "", secret))
}

func TestSignPayment_Deterministic(t *testing.T) {
	a := SignPayment("order_1", "pay_1", "s")
	b := SignPayment("order_1", "pay_1", "s")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SignPayment("order_2", "pay_1", "s"))
}

func TestGatewayIDValidation(t *testing.T) {
	assert.True(t, ValidPaymentID("pay_29QQoUBi66xm2f"))
	assert.False(t, ValidPaymentID("pay_"))
	assert.False(t, ValidPaymentID("order_29QQoUBi66xm2f"))

	assert.True(t, ValidOrderID("order_IluGWxBm9U8zJ8"))
	assert.False(t, ValidOrderID("ord_IluGWxBm9U8zJ8"))

	assert.True(t, ValidRefundID("rfnd_FP8QHiV938haTz"))
	assert.False(t, ValidRefundID(""))
}
