package models

import "time"

// Product is a catalog row as the engine sees it
type Product struct {
	Code     string  `json:"code" gorm:"primaryKey;size:32"`
	Name     string  `json:"name" gorm:"index"`
	PriceUSD float64 `json:"price_usd"`
	TaxRate  float64 `json:"tax_rate"` // percent, 16 means 16%
	Stock    float64 `json:"stock"`
}

// TableName keeps the legacy table name
func (Product) TableName() string { return "products" }

// ExchangeRate is one published USD to local-currency rate
type ExchangeRate struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Rate        float64   `json:"rate"`
	EffectiveAt time.Time `json:"effective_at" gorm:"index"`
}

// SearchLog records one product search of a customer
type SearchLog struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	PhoneNumber string    `json:"phone_number" gorm:"index;size:32"`
	Term        string    `json:"term"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
