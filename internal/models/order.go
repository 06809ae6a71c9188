package models

import "time"

// Payment methods offered at checkout
const (
	PaymentMethodPagoMovil     = "pago_movil"
	PaymentMethodTransferencia = "transferencia"
	PaymentMethodEfectivo      = "efectivo"
	PaymentMethodZelle         = "zelle"
)

// Order and payment status constants
const (
	OrderStatusPending = "pending"

	PaymentStatusVerified = "verified"
	PaymentStatusNew      = "new"
)

// RequiresProof reports whether the method goes through bank/phone/ID/reference capture
func RequiresProof(method string) bool {
	return method == PaymentMethodPagoMovil || method == PaymentMethodTransferencia
}

// Bank is an entry of the bank list used for transfers
type Bank struct {
	Code string `json:"code" gorm:"primaryKey;size:4"`
	Name string `json:"name"`
}

// Order is created from the cart at the end of checkout
type Order struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	OrderNumber   string      `json:"order_number" gorm:"uniqueIndex;size:40"`
	CartKey       string      `json:"-" gorm:"uniqueIndex;size:36"` // utils.OrderKey of the lines it was built from
	CustomerCode  string      `json:"customer_code" gorm:"index"`
	PhoneNumber   string      `json:"phone_number" gorm:"index;size:32"`
	PaymentMethod string      `json:"payment_method"`
	TotalUSD      float64     `json:"total_usd"`
	TotalBs       float64     `json:"total_bs"`
	Status        string      `json:"status" gorm:"default:'pending'"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OrderItem is a cart line frozen into an order
type OrderItem struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	OrderID      uint    `json:"order_id" gorm:"index"`
	ProductCode  string  `json:"product_code"`
	ProductName  string  `json:"product_name"`
	PriceUSD     float64 `json:"price_usd"`
	TaxRate      float64 `json:"tax_rate"`
	Quantity     int     `json:"quantity"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// OrderResult is what the order backend reports back to the conversation
type OrderResult struct {
	OrderID     uint    `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	TotalUSD    float64 `json:"total_usd"`
	TotalBs     float64 `json:"total_bs"`
}

// PaymentProof is the bank-transfer evidence collected during checkout
type PaymentProof struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OrderID   uint      `json:"order_id" gorm:"uniqueIndex"`
	BankCode  string    `json:"bank_code"`
	BankName  string    `json:"bank_name"`
	Phone     string    `json:"phone"`
	IDNumber  string    `json:"id_number"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"` // verified or new
	CreatedAt time.Time `json:"created_at"`
}

// LineIDs lists the ids of the given cart lines
func LineIDs(lines []CartLine) []uint {
	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}
