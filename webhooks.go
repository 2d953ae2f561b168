package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/sirupsen/logrus"
)

// orderWebhookHandler receives orders/create deliveries. The only failure the
// sender ever sees is 401 on a bad signature; once authenticated the response
// is 200 no matter what happens inside, so the platform never retries a
// delivery that merely failed processing. Redeliveries with the same id are
// absorbed by the dedup check.
func orderWebhookHandler() gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		secret := config.GetShopifySettings().WebhookSecret
		signature := c.GetHeader("X-Shopify-Hmac-SHA256")
		if !utils.VerifyWebhookSignature(secret, body, signature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		webhookId := c.GetHeader("X-Shopify-Webhook-Id")
		if webhookId == "" {
			// No delivery id means no dedup key; acknowledge and drop.
			logger.Warn("webhook delivery without id, ignoring")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		topic := c.GetHeader("X-Shopify-Topic")
		if topic == "" {
			topic = "orders/create"
		}

		outcome, err := models.ProcessOrderCreated(c.Request.Context(), webhookId, topic, string(body))
		if err != nil {
			// Recorded on the log entry; the sender still gets a 200.
			config.LogError(logger, "server.go", "orderWebhookHandler", "process delivery", webhookId, err)
			c.JSON(http.StatusOK, gin.H{"status": "error logged"})
			return
		}
		if outcome.Duplicate {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}

		correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"webhook_id":     webhookId,
			"correlation_id": correlationId,
			"sold":           len(outcome.SoldSerials),
			"skipped":        len(outcome.Skipped),
		}).Info("order delivery processed")
		c.JSON(http.StatusOK, gin.H{
			"status":  "processed",
			"sold":    outcome.SoldSerials,
			"skipped": outcome.Skipped,
		})
	}
}
