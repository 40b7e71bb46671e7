package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	// printf 'order_1|pay_1' | openssl dgst -sha256 -hmac secret
	const known = "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb"
	sig := Sign("secret", "order_1", "pay_1")
	assert.Equal(t, known, sig)

	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
	assert.False(t, VerifySignature("", "order_1", "pay_1", sig))
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", " "+known+" "))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := hexMAC("whsec", body)

	assert.True(t, VerifyWebhookSignature("whsec", body, sig))
	assert.False(t, VerifyWebhookSignature("whsec", append(body, ' '), sig))
	assert.False(t, VerifyWebhookSignature("whsec", body, "deadbeef"))
}
