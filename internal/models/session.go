package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation contexts. The context tag decides which handler processes the next message.
const (
	ContextNewClient                = "new_client"
	ContextNewClientRegistration    = "new_client_registration"
	ContextMenu                     = "menu"
	ContextProductSearch            = "product_search"
	ContextCheckoutPaymentSelection = "checkout_payment_selection"
	ContextPaymentBankSelection     = "payment_bank_selection"
	ContextPaymentPhoneInput        = "payment_phone_input"
	ContextPaymentCedulaInput       = "payment_cedula_input"
	ContextPaymentReferenceInput    = "payment_reference_input"
)

// WhatsAppSession stores the conversation state of one customer identity
type WhatsAppSession struct {
	gorm.Model
	PhoneNumber string `json:"phone_number" gorm:"uniqueIndex;size:32"`

	// Identity resolved against the customer directory
	CustomerCode     string `json:"customer_code"`
	CustomerName     string `json:"customer_name"`
	CustomerIDNumber string `json:"customer_id_number"`
	Authenticated    bool   `json:"authenticated" gorm:"default:false"`
	IsNewCustomer    bool   `json:"is_new_customer" gorm:"default:false"`

	Context        string    `json:"context" gorm:"size:48;default:'new_client'"`
	MessageCount   int       `json:"message_count" gorm:"default:0"`
	SearchCount    int       `json:"search_count" gorm:"default:0"`
	LastInbound    string    `json:"last_inbound" gorm:"type:text"`
	LastOutbound   string    `json:"last_outbound" gorm:"type:text"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"index"`
	IsActive       bool      `json:"is_active" gorm:"default:true;index"`

	// Per-flow ephemeral state, one field per flow
	Search       *SearchContext       `json:"search,omitempty" gorm:"serializer:json;type:jsonb"`
	Payment      *PendingPayment      `json:"payment,omitempty" gorm:"serializer:json;type:jsonb"`
	Registration *PendingRegistration `json:"registration,omitempty" gorm:"serializer:json;type:jsonb"`
}

// TableName keeps the legacy table name
func (WhatsAppSession) TableName() string { return "chat_sessions" }

// IsPaymentContext reports whether the session is inside payment-proof capture
func (s *WhatsAppSession) IsPaymentContext() bool {
	switch s.Context {
	case ContextCheckoutPaymentSelection, ContextPaymentBankSelection, ContextPaymentPhoneInput,
		ContextPaymentCedulaInput, ContextPaymentReferenceInput:
		return true
	}
	return false
}

// ClearFlows drops every in-progress flow state
func (s *WhatsAppSession) ClearFlows() {
	s.Search = nil
	s.Payment = nil
	s.Registration = nil
}

// Authenticate copies a directory record onto the session
func (s *WhatsAppSession) Authenticate(c *Customer) {
	s.CustomerCode = c.Code
	s.CustomerName = c.Name
	s.CustomerIDNumber = c.IDNumber
	s.Authenticated = true
	s.IsNewCustomer = false
	s.Context = ContextMenu
}

// Deauthenticate forgets the resolved identity
func (s *WhatsAppSession) Deauthenticate() {
	s.CustomerCode = ""
	s.CustomerName = ""
	s.CustomerIDNumber = ""
	s.Authenticated = false
	s.Context = ContextNewClient
	s.ClearFlows()
}

// SearchItem is one row of the last search shown to the customer
type SearchItem struct {
	Label string  `json:"label"` // "3" or "1.2"
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// SearchGroup holds the results of one sub-search of a multi-term query
type SearchGroup struct {
	Term  string       `json:"term"`
	Items []SearchItem `json:"items"`
}

// SearchContext is the most recent search result set, overwritten by every search
type SearchContext struct {
	Query  string        `json:"query"`
	Groups []SearchGroup `json:"groups"`
}

// Multi reports whether the results came from several sub-searches
func (sc *SearchContext) Multi() bool {
	return sc != nil && len(sc.Groups) > 1
}

// Flatten returns every item in display order
func (sc *SearchContext) Flatten() []SearchItem {
	if sc == nil {
		return nil
	}
	var items []SearchItem
	for _, g := range sc.Groups {
		items = append(items, g.Items...)
	}
	return items
}

// Resolve finds the item behind an ordinal reference. group is 0 for a flat ordinal.
func (sc *SearchContext) Resolve(group, index int) (SearchItem, bool) {
	if sc == nil || index < 1 {
		return SearchItem{}, false
	}
	if group > 0 {
		if group > len(sc.Groups) || index > len(sc.Groups[group-1].Items) {
			return SearchItem{}, false
		}
		return sc.Groups[group-1].Items[index-1], true
	}
	items := sc.Flatten()
	if index > len(items) {
		return SearchItem{}, false
	}
	return items[index-1], true
}

// PendingPayment accumulates payment-proof fields across the capture turns
type PendingPayment struct {
	Method    string  `json:"method"`
	BankCode  string  `json:"bank_code,omitempty"`
	BankName  string  `json:"bank_name,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	IDNumber  string  `json:"id_number,omitempty"`
	Verified  bool    `json:"verified,omitempty"`
	Reference string  `json:"reference,omitempty"`
	TotalUSD  float64 `json:"total_usd"`
	TotalBs   float64 `json:"total_bs"`
}

// Complete reports whether all four proof fields are present
func (p *PendingPayment) Complete() bool {
	return p != nil && p.BankCode != "" && p.Phone != "" && p.IDNumber != "" && p.Reference != ""
}

// PendingRegistration holds the ID number of a customer being registered
type PendingRegistration struct {
	IDNumber string `json:"id_number"`
}
