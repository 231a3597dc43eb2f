package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"
)

// GatewayTokenHeader authenticates the chat gateway's inbound calls.
const GatewayTokenHeader = "X-Gateway-Token"

// Chat event types sent by the gateway.
const (
	ChatEventBegin    = "begin"
	ChatEventQuantity = "quantity"
	ChatEventCurrency = "currency"
	ChatEventText     = "text"
)

// ChatEvent is one buyer interaction forwarded by the chat gateway.
type ChatEvent struct {
	Type     string `json:"type" binding:"required"`
	BuyerID  string `json:"buyer_id" binding:"required"`
	Username string `json:"username"`
	Quantity int    `json:"quantity"`
	Currency string `json:"currency"`
	Text     string `json:"text"`
}

func (e *ChatEvent) buyer() models.Buyer {
	return models.Buyer{ID: e.BuyerID, Handle: strings.TrimPrefix(e.Username, "@")}
}

// HandleChatEvent handles POST /api/v1/chat/events
func (h *Handlers) HandleChatEvent(c *gin.Context) {
	if token := h.config.ChatGateway.InboundToken; token != "" && c.GetHeader(GatewayTokenHeader) != token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var event ChatEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn("Failed to bind chat event", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	buyer := event.buyer()

	h.logger.Debug("Chat event received", logging.Fields{
		"type":     event.Type,
		"buyer_id": buyer.ID,
	})

	var (
		session *models.OrderSession
		err     error
	)

	switch event.Type {
	case ChatEventBegin:
		session, err = h.orders.Begin(ctx, buyer)
	case ChatEventQuantity:
		session, err = h.orders.SelectQuantity(ctx, buyer, event.Quantity)
	case ChatEventCurrency:
		currency, ok := models.ParseCurrency(event.Currency)
		if !ok {
			handleError(c, apperrors.NewValidationError("currency", "unknown currency "+event.Currency))
			return
		}
		session, err = h.orders.SelectCurrency(ctx, buyer, currency)
	case ChatEventText:
		h.handleText(c, buyer, event.Text)
		return
	default:
		handleError(c, apperrors.NewValidationError("type", "unknown event type "+event.Type))
		return
	}

	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handlers) handleText(c *gin.Context, buyer models.Buyer, text string) {
	if !service.IsManualConfirmation(text) {
		c.JSON(http.StatusOK, gin.H{"outcome": string(service.OutcomeIgnored)})
		return
	}

	outcome, err := h.reconciler.HandleManual(c.Request.Context(), buyer)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
}

// GetSession handles GET /api/v1/chat/sessions/:buyer_id
func (h *Handlers) GetSession(c *gin.Context) {
	session, err := h.orders.Session(c.Request.Context(), c.Param("buyer_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
