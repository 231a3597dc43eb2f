package handlers

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"
)

// WebhookValidator checks the processor's callback signature.
type WebhookValidator interface {
	ValidateWebhook(payload []byte, signature string) (bool, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the storefront bot.
type Handlers struct {
	orders     *service.OrderMachine
	reconciler *service.Reconciler
	validator  WebhookValidator
	requeuer   events.Requeuer
	checks     map[string]ReadinessCheck
	config     *config.Config
	logger     *logging.LoggerV2
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orders *service.OrderMachine,
	reconciler *service.Reconciler,
	validator WebhookValidator,
	requeuer events.Requeuer,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		orders:     orders,
		reconciler: reconciler,
		validator:  validator,
		requeuer:   requeuer,
		checks:     make(map[string]ReadinessCheck),
		config:     cfg,
		logger:     logging.NewLoggerV2("handlers"),
	}
}

// AddReadinessCheck registers a dependency probed by /ready.
func (h *Handlers) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}
