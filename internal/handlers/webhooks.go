package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

const (
	maxIPNBody     = 1 << 20
	requeueTimeout = 10 * time.Second
)

// HandleIPN handles POST /ipn
// The processor always gets 200 OK; anything else makes it redeliver.
func (h *Handlers) HandleIPN(c *gin.Context) {
	defer c.String(http.StatusOK, "OK")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIPNBody))
	if err != nil {
		h.logger.Warn("Failed to read payment callback", logging.Fields{"error": err.Error()})
		return
	}

	valid, err := h.validator.ValidateWebhook(body, c.GetHeader(clients.SignatureHeader))
	if err != nil || !valid {
		metrics.WebhookSignatureFailures.Inc()
		fields := logging.Fields{"remote_addr": c.ClientIP()}
		if err != nil {
			fields["error"] = err.Error()
		}
		h.logger.Warn("Payment callback signature rejected", fields)
		return
	}

	var n models.PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		h.logger.Warn("Failed to decode payment callback", logging.Fields{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	outcome, err := h.reconciler.HandleIPN(ctx, &n, models.ChannelWebhook)
	if err != nil {
		if !apperrors.IsLedger(err) {
			h.logger.Error("Payment callback failed", logging.Fields{
				"payment_id": n.PaymentID,
				"error":      err.Error(),
			})
			return
		}
		// The processor may hang up once it has its OK; the requeue must outlive the request.
		requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
		if err := h.requeuer.RequeueConfirmation(requeueCtx, &n, 1); err != nil {
			h.logger.Error("Failed to requeue payment callback", logging.Fields{
				"payment_id": n.PaymentID,
				"error":      err.Error(),
			})
		}
		return
	}

	h.logger.Info("Payment callback handled", logging.Fields{
		"payment_id": n.PaymentID,
		"order_id":   n.OrderID,
		"outcome":    string(outcome),
	})
}
