package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0},
		Shop:   config.ShopConfig{Name: "Test Shop", OrderDescription: "Account bundle", MaxQuantity: 100},
	}
	sessions := repository.NewMemorySessionStore()
	chat := clients.NewMockChatGateway()
	locks := service.NewKeyedLocker()
	machine := service.NewOrderMachine(sessions, clients.NewMockInvoiceClient(), chat, locks, cfg.Shop)
	reconciler := service.NewReconciler(sessions, repository.NewMockLedger(), repository.NewMemoryPaymentDedup(0), events.NewNoopPublisher(), chat, locks, cfg)
	validator := clients.NewNOWPaymentsClient(cfg.PaymentProcessor, cfg.Shop, logging.NewLoggerV2("server-test"))

	h := handlers.NewHandlers(machine, reconciler, validator, events.NewNoopPublisher(), cfg)
	return New(h, cfg)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		body     string
		expected int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/version", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/ipn", `{"payment_status":"waiting"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/chat/events", `{"type":"begin","buyer_id":"42"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/chat/sessions/42", "", http.StatusOK},
		{http.MethodGet, "/api/v1/chat/sessions/43", "", http.StatusNotFound},
		{http.MethodGet, "/nowhere", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			srv.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestMetricsExposeStorefrontCollectors(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/events", strings.NewReader(`{"type":"begin","buyer_id":"7"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, w.Body.String(), "storefront_http_requests_total")
}
