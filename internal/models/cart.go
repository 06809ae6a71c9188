package models

import (
	"math"
	"time"
)

// CartLine status constants. Transitions only go from active to cleared or expired.
const (
	CartStatusActive  = "active"
	CartStatusCleared = "cleared"
	CartStatusExpired = "expired"
)

// CartLine is one product awaiting checkout for a customer
type CartLine struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	PhoneNumber  string    `json:"phone_number" gorm:"index:idx_cart_owner_status;size:32"`
	ProductCode  string    `json:"product_code" gorm:"size:32"`
	ProductName  string    `json:"product_name"`
	PriceUSD     float64   `json:"price_usd"`
	TaxRate      float64   `json:"tax_rate"`
	Quantity     int       `json:"quantity"`
	ExchangeRate float64   `json:"exchange_rate"`
	Status       string    `json:"status" gorm:"index:idx_cart_owner_status;size:16;default:'active'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanTransition reports whether the status change is allowed
func CanTransition(from, to string) bool {
	return from == CartStatusActive && (to == CartStatusCleared || to == CartStatusExpired)
}

// CartTotals is the computed summary of the active lines of one cart
type CartTotals struct {
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	TotalUSD  float64    `json:"total_usd"`
	TotalBs   float64    `json:"total_bs"`
}

// Empty reports whether the cart has no active lines
func (t CartTotals) Empty() bool {
	return len(t.Lines) == 0
}

// ComputeTotals sums the active lines. Amounts are accumulated unrounded and rounded to
// cents once, so repeated reads never drift.
func ComputeTotals(lines []CartLine) CartTotals {
	totals := CartTotals{}
	var usd, bs float64
	for _, l := range lines {
		if l.Status != "" && l.Status != CartStatusActive {
			continue
		}
		subtotal := l.PriceUSD * float64(l.Quantity)
		withTax := subtotal * (1 + l.TaxRate/100)
		usd += withTax
		bs += withTax * l.ExchangeRate
		totals.ItemCount += l.Quantity
		totals.Lines = append(totals.Lines, l)
	}
	totals.TotalUSD = RoundCents(usd)
	totals.TotalBs = RoundCents(bs)
	return totals
}

// RoundCents rounds half away from zero to two decimals
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
