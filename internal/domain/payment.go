package domain

import (
	"strconv"
	"strings"
	"time"
)

// Authorized runs the deterministic validation of the payment method's
// preconditions. Cash always passes; card requires a 15-19 digit number and
// an unexpired MM/YYYY expiry. Random processor declines are layered on by
// the payment gateway, not here.
func (p *Payment) Authorized(now time.Time) (bool, string) {
	switch p.Type {
	case PaymentTypeCash:
		return true, "Approved"
	case PaymentTypeCard:
		if p.Card == nil {
			return false, "Card details are required"
		}
		return p.Card.validate(now)
	default:
		return false, "Invalid payment method"
	}
}

func (c *CardDetails) validate(now time.Time) (bool, string) {
	number := normalizeCardNumber(c.Number)
	if !isDigits(number) || len(number) < 15 || len(number) > 19 {
		return false, "Invalid Card Number (must be 15-19 digits)"
	}

	parts := strings.Split(c.ExpDate, "/")
	if len(parts) != 2 {
		return false, "Invalid Expiry Date Format"
	}
	month, errM := strconv.Atoi(parts[0])
	year, errY := strconv.Atoi(parts[1])
	if errM != nil || errY != nil || month < 1 || month > 12 {
		return false, "Invalid Expiry Date Format"
	}
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return false, "Card Expired"
	}
	return true, "Approved"
}

// MaskedDetails returns a receipt-safe description of a card payment
func (p *Payment) MaskedDetails() string {
	if p.Card == nil {
		return ""
	}
	number := normalizeCardNumber(p.Card.Number)
	if len(number) < 4 {
		return ""
	}
	brand := p.Card.Brand
	if brand == "" {
		brand = "Card"
	}
	return brand + " **** " + number[len(number)-4:]
}

// normalizeCardNumber strips the separators customers commonly type into
// card number fields before validation.
func normalizeCardNumber(number string) string {
	number = strings.TrimSpace(number)
	number = strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(number, "-", "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
