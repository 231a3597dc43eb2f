package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

func welcomeText(shopName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to %s!\n\n", shopName)
	fmt.Fprintf(&b, "Each item is %s %s.\n\n", models.UnitPrice.String(), strings.ToUpper(models.SettlementCurrency))
	b.WriteString("Select the quantity you want to buy:")
	return b.String()
}

func quantityOptions(max int) []clients.MenuOption {
	qs := quantityMenu(max)
	options := make([]clients.MenuOption, 0, len(qs))
	for _, q := range qs {
		v := strconv.Itoa(q)
		options = append(options, clients.MenuOption{Label: v, Value: v})
	}
	return options
}

func currencyPromptText(s *models.OrderSession) string {
	return fmt.Sprintf("You selected %d item(s).\n\nTotal: %s %s\n\nChoose a payment currency:",
		s.Quantity, s.TotalPrice().StringFixed(2), strings.ToUpper(models.SettlementCurrency))
}

func currencyOptions(quantity int) []clients.MenuOption {
	currencies := models.CurrenciesFor(quantity)
	options := make([]clients.MenuOption, 0, len(currencies))
	for _, c := range currencies {
		options = append(options, clients.MenuOption{Label: c.Label(), Value: string(c)})
	}
	return options
}

func invoiceText(s *models.OrderSession) string {
	return fmt.Sprintf("Order for %d item(s), %s %s in %s.\n\nPay here: %s\n\nAfter payment, reply with 'Paid' to confirm.",
		s.Quantity, s.TotalPrice().StringFixed(2), strings.ToUpper(models.SettlementCurrency), s.PayCurrency.Label(), s.InvoiceURL)
}

const (
	invoiceFailedText   = "We could not create your invoice right now. Please pick a currency to try again."
	openInvoiceText     = "You already have an open invoice. Pay it and reply 'Paid', or start a new order."
	noOpenInvoiceText   = "There is no open invoice to confirm. Start a new order to buy."
	manualConfirmedText = "Payment confirmed! Your order will be delivered shortly. Thank you!"
)

func paymentReceivedText(row *models.LedgerRow) string {
	return fmt.Sprintf("Payment received for %d item(s) (%s %s). Your order will be delivered shortly. Thank you!",
		row.Quantity, row.TotalPrice.StringFixed(2), strings.ToUpper(models.SettlementCurrency))
}
