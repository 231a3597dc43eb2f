package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// MenuOption is one button of a chat menu.
type MenuOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChatMessage is the outbound render request sent to the chat gateway.
type ChatMessage struct {
	BuyerID string       `json:"buyer_id"`
	Text    string       `json:"text"`
	Options []MenuOption `json:"options,omitempty"`
}

// HTTPChatGateway delivers messages and menus to buyers through the chat
// gateway's HTTP API.
type HTTPChatGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.LoggerV2
}

// NewHTTPChatGateway creates a new HTTP-based chat gateway client.
func NewHTTPChatGateway(cfg config.ChatGatewayConfig, logger *logging.LoggerV2) *HTTPChatGateway {
	return &HTTPChatGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// SendText sends a plain text message to the buyer.
func (g *HTTPChatGateway) SendText(ctx context.Context, buyer models.Buyer, text string) error {
	return g.send(ctx, &ChatMessage{BuyerID: buyer.ID, Text: text})
}

// SendMenu sends a message with selectable options.
func (g *HTTPChatGateway) SendMenu(ctx context.Context, buyer models.Buyer, text string, options []MenuOption) error {
	return g.send(ctx, &ChatMessage{BuyerID: buyer.ID, Text: text, Options: options})
}

func (g *HTTPChatGateway) send(ctx context.Context, msg *ChatMessage) error {
	g.logger.Debug("Sending chat message", logging.Fields{
		"buyer_id": msg.BuyerID,
		"options":  len(msg.Options),
	})

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/messages", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("Chat message request failed", logging.Fields{
			"buyer_id": msg.BuyerID,
			"error":    err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		g.logger.Error("Chat gateway returned error", logging.Fields{
			"buyer_id":    msg.BuyerID,
			"status_code": resp.StatusCode,
		})
		return fmt.Errorf("chat gateway returned status %d", resp.StatusCode)
	}

	return nil
}
