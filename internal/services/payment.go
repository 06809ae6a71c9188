package services

import (
	"math"

	"github.com/telehostca/chatbot-backend/internal/models"
)

// PaymentTolerance is the relative difference accepted between the expected and paid amounts
const PaymentTolerance = 0.05

// AmountCheck is the outcome of ValidatePaymentAmount
type AmountCheck struct {
	Valid         bool    `json:"valid"`
	DifferencePct float64 `json:"difference_pct"`
}

// ValidatePaymentAmount accepts a paid amount within 5% of the expected one, in either direction.
// It is independent of the proof-collection flow, which never checks amounts.
func ValidatePaymentAmount(expected, paid float64) AmountCheck {
	if expected <= 0 {
		if paid == expected {
			return AmountCheck{Valid: true}
		}
		return AmountCheck{Valid: false, DifferencePct: 100}
	}
	diff := math.Abs(paid-expected) / expected
	return AmountCheck{
		Valid:         diff <= PaymentTolerance,
		DifferencePct: models.RoundCents(diff * 100),
	}
}

// NewPaymentProof turns the captured fields into the record stored against an order
func NewPaymentProof(order *models.OrderResult, p *models.PendingPayment) *models.PaymentProof {
	status := models.PaymentStatusNew
	if p.Verified {
		status = models.PaymentStatusVerified
	}
	return &models.PaymentProof{
		OrderID:   order.OrderID,
		BankCode:  p.BankCode,
		BankName:  p.BankName,
		Phone:     p.Phone,
		IDNumber:  p.IDNumber,
		Reference: p.Reference,
		Amount:    order.TotalBs,
		Status:    status,
	}
}
