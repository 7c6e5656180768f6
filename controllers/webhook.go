package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bom-analytics-helper/config"
	"bom-analytics-helper/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 4 << 20

// webhookOrder is the part of a WooCommerce order payload we read.
type webhookOrder struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

// WooCommerceWebhook turns signed order webhooks into order-saved events.
func WooCommerceWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		sendError(c, http.StatusBadRequest, gin.H{"message": "Failed to read request body."})
		return
	}

	// Delivery pings carry "webhook_id=N" and no order.
	if strings.HasPrefix(string(body), "webhook_id=") {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if !validWebhookSignature(deps.WebhookSecret, body, c.GetHeader("X-WC-Webhook-Signature")) {
		sendError(c, http.StatusUnauthorized, gin.H{"message": "Invalid webhook signature."})
		return
	}

	topic := c.GetHeader("X-WC-Webhook-Topic")
	if topic != "order.created" && topic != "order.updated" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"ignored": topic}})
		return
	}

	var order webhookOrder
	if err := json.Unmarshal(body, &order); err != nil || order.ID == 0 {
		sendError(c, http.StatusBadRequest, gin.H{"message": "Invalid order payload."})
		return
	}

	ctx := services.PersistentContext(c.Request.Context())
	ev := services.Event{Name: services.HookSavedOrderItems, OrderID: order.ID, NewStatus: order.Status}
	if err := deps.Hooks.DoAction(ctx, ev); err != nil {
		config.Logger.Error("webhook order sync failed",
			zap.String("topic", topic),
			zap.Uint64("order_id", order.ID),
			zap.Error(err))
		sendError(c, http.StatusInternalServerError, gin.H{"message": "Order sync failed."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"order_id": order.ID}})
}

// validWebhookSignature checks the base64 HMAC-SHA256 of body.
func validWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
