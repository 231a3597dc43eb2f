package service

import (
	"fmt"
	"strings"

	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// ErrInvalidTransition is returned for input that does not fit the buyer's
// current step.
var ErrInvalidTransition = apperrors.NewValidationError("status", "input does not match the current order step")

// ValidateBuyer checks that the chat gateway identified the buyer.
func ValidateBuyer(buyer models.Buyer) error {
	if strings.TrimSpace(buyer.ID) == "" {
		return apperrors.NewValidationError("buyer_id", "buyer ID is required")
	}
	return nil
}

// ValidateQuantity checks 1 <= quantity <= max. A max of zero means no cap.
func ValidateQuantity(quantity, max int) error {
	if quantity < 1 {
		return apperrors.NewValidationError("quantity", "quantity must be at least 1")
	}
	if max > 0 && quantity > max {
		return apperrors.NewValidationError("quantity", fmt.Sprintf("quantity must not exceed %d", max))
	}
	return nil
}

// ValidateCurrency checks that currency is offered for quantity.
func ValidateCurrency(quantity int, currency models.Currency) error {
	if !models.CurrencyAllowed(quantity, currency) {
		return apperrors.NewValidationError("currency", fmt.Sprintf("%s is not available for %d item(s)", currency.Label(), quantity))
	}
	return nil
}

// IsManualConfirmation reports whether a chat utterance declares payment.
func IsManualConfirmation(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "paid")
}
