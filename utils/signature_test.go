package utils_test

import (
	"testing"

	"github.com/pedalhouse/bikestock_backend/utils"
)

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "shh-dont-tell"
	body := []byte(`{"id":12345,"line_items":[{"sku":"BIKE-00001","price":"999.00"}]}`)

	signature := utils.ComputeWebhookSignature(secret, body)
	if !utils.VerifyWebhookSignature(secret, body, signature) {
		t.Fatal("valid signature did not verify")
	}
}

func TestVerifyWebhookSignature_Rejections(t *testing.T) {
	secret := "shh-dont-tell"
	body := []byte(`{"id":12345}`)
	signature := utils.ComputeWebhookSignature(secret, body)

	if utils.VerifyWebhookSignature(secret, []byte(`{"id":54321}`), signature) {
		t.Error("tampered body verified")
	}
	if utils.VerifyWebhookSignature("wrong-secret", body, signature) {
		t.Error("wrong secret verified")
	}
	if utils.VerifyWebhookSignature(secret, body, "") {
		t.Error("empty signature verified")
	}
	if utils.VerifyWebhookSignature("", body, signature) {
		t.Error("empty secret verified")
	}
	if utils.VerifyWebhookSignature(secret, body, "not base64!!") {
		t.Error("garbage signature verified")
	}
}
