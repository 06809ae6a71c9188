package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Customer is a row of the legacy sales customer table
type Customer struct {
	gorm.Model
	Code           string     `json:"code" gorm:"uniqueIndex;size:32"`
	Name           string     `json:"name"`
	IDNumber       string     `json:"id_number" gorm:"index;size:16"` // V12345678, J123456789
	Phone1         string     `json:"phone1" gorm:"index;size:32"`
	Phone2         string     `json:"phone2" gorm:"index;size:32"`
	Email          string     `json:"email"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
	IsDisabled     bool       `json:"is_disabled" gorm:"default:false"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

// BeforeCreate normalizes the ID number and defaults the customer code to it
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	c.IDNumber = strings.ToUpper(strings.ReplaceAll(c.IDNumber, "-", ""))
	if c.Code == "" {
		c.Code = c.IDNumber
	}
	return nil
}

// Eligible reports whether the record can authenticate a conversation
func (c *Customer) Eligible() bool {
	return c.IsActive && !c.IsDisabled
}
