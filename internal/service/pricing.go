package service

import (
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// QuantityOptions are the quantities offered in the chat menu.
var QuantityOptions = []int{1, 2, 3, 5, 10, 25, 50, 100}

// QuoteTotal returns the invoice amount for quantity.
func QuoteTotal(quantity int) decimal.Decimal {
	return models.TotalPrice(quantity)
}

// quantityMenu lists the offered quantities not above max.
func quantityMenu(max int) []int {
	out := make([]int, 0, len(QuantityOptions))
	for _, q := range QuantityOptions {
		if max > 0 && q > max {
			break
		}
		out = append(out, q)
	}
	return out
}
