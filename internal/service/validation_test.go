package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

func TestQuoteTotal(t *testing.T) {
	for q := 1; q <= 100; q++ {
		assert.Equal(t, int64(5*q), QuoteTotal(q).IntPart(), "quantity %d", q)
	}
}

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		max      int
		wantErr  bool
	}{
		{"zero", 0, 100, true},
		{"negative", -3, 100, true},
		{"one", 1, 100, false},
		{"at cap", 100, 100, false},
		{"over cap", 101, 100, true},
		{"no cap", 5000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuantity(tt.quantity, tt.max)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCurrency_Tiers(t *testing.T) {
	assert.Error(t, ValidateCurrency(1, models.CurrencyUSDTTRC20))
	assert.NoError(t, ValidateCurrency(1, models.CurrencyLTC))
	assert.NoError(t, ValidateCurrency(2, models.CurrencyUSDTTRC20))
	assert.Error(t, ValidateCurrency(2, models.Currency("btc")))
}

func TestIsManualConfirmation(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"paid", true},
		{"Paid", true},
		{"  PAID \n", true},
		{"paid!", false},
		{"I paid", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsManualConfirmation(tt.text), "%q", tt.text)
	}
}

func TestQuantityMenu(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 5, 10, 25, 50, 100}, quantityMenu(100))
	assert.Equal(t, []int{1, 2, 3, 5, 10}, quantityMenu(20))
	assert.Equal(t, QuantityOptions, quantityMenu(0))
}
