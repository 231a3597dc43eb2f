package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

func TestHTTPChatGateway_SendMenu(t *testing.T) {
	var got ChatMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer gw-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	gw := NewHTTPChatGateway(config.ChatGatewayConfig{BaseURL: server.URL, APIKey: "gw-key", Timeout: time.Second}, logging.NewLoggerV2("chat-test"))

	err := gw.SendMenu(context.Background(), models.Buyer{ID: "42"}, "Pick one", []MenuOption{{Label: "LTC", Value: "ltc"}})
	require.NoError(t, err)

	assert.Equal(t, "42", got.BuyerID)
	assert.Equal(t, "Pick one", got.Text)
	require.Len(t, got.Options, 1)
	assert.Equal(t, "ltc", got.Options[0].Value)
}

func TestHTTPChatGateway_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gw := NewHTTPChatGateway(config.ChatGatewayConfig{BaseURL: server.URL, Timeout: time.Second}, logging.NewLoggerV2("chat-test"))

	err := gw.SendText(context.Background(), models.Buyer{ID: "42"}, "hello")
	assert.Error(t, err)
}
