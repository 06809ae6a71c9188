package services

import (
	"context"
	"errors"

	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// CartLedger keeps the per-customer cart lines and computes totals
type CartLedger struct {
	carts   storage.CartStore
	catalog storage.Catalog
	rates   storage.RateSource
}

// NewCartLedger creates a cart ledger
func NewCartLedger(carts storage.CartStore, catalog storage.Catalog, rates storage.RateSource) *CartLedger {
	return &CartLedger{carts: carts, catalog: catalog, rates: rates}
}

// Add puts quantity units of a product in the cart. An existing active line for the same
// product grows; otherwise a line is created with the current price, tax rate, and exchange rate.
func (c *CartLedger) Add(ctx context.Context, phone, productCode string, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		quantity = 1
	}

	line, err := c.carts.FindActiveLine(ctx, phone, productCode)
	switch {
	case err == nil:
		line.Quantity += quantity
		if err := c.carts.UpdateLine(ctx, line); err != nil {
			return nil, collaboratorFault("cart.UpdateLine", err)
		}
		return line, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, collaboratorFault("cart.FindActiveLine", err)
	}

	product, err := c.catalog.FindProduct(ctx, productCode)
	if err != nil {
		return nil, collaboratorFault("catalog.FindProduct", err)
	}
	rate, err := c.rates.CurrentRate(ctx)
	if err != nil {
		return nil, collaboratorFault("rates.CurrentRate", err)
	}

	created, err := c.carts.CreateLine(ctx, &models.CartLine{
		PhoneNumber:  phone,
		ProductCode:  product.Code,
		ProductName:  product.Name,
		PriceUSD:     product.PriceUSD,
		TaxRate:      product.TaxRate,
		Quantity:     quantity,
		ExchangeRate: rate,
		Status:       models.CartStatusActive,
	})
	if err != nil {
		return nil, collaboratorFault("cart.CreateLine", err)
	}
	return created, nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it
func (c *CartLedger) UpdateQuantity(ctx context.Context, phone, productCode string, quantity int) error {
	if quantity <= 0 {
		_, err := c.Remove(ctx, phone, productCode)
		return err
	}
	line, err := c.carts.FindActiveLine(ctx, phone, productCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return collaboratorFault("cart.FindActiveLine", err)
	}
	line.Quantity = quantity
	if err := c.carts.UpdateLine(ctx, line); err != nil {
		return collaboratorFault("cart.UpdateLine", err)
	}
	return nil
}

// Remove marks the product's active line cleared. It reports false when there was none.
func (c *CartLedger) Remove(ctx context.Context, phone, productCode string) (bool, error) {
	line, err := c.carts.FindActiveLine(ctx, phone, productCode)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, collaboratorFault("cart.FindActiveLine", err)
	}
	if err := c.carts.SetLineStatus(ctx, line.ID, models.CartStatusCleared); err != nil {
		return false, collaboratorFault("cart.SetLineStatus", err)
	}
	return true, nil
}

// Clear marks every active line cleared
func (c *CartLedger) Clear(ctx context.Context, phone string) (int64, error) {
	n, err := c.carts.ClearLines(ctx, phone)
	if err != nil {
		return 0, collaboratorFault("cart.ClearLines", err)
	}
	return n, nil
}

// Totals computes the cart summary from the active lines
func (c *CartLedger) Totals(ctx context.Context, phone string) (models.CartTotals, error) {
	lines, err := c.carts.ActiveLines(ctx, phone)
	if err != nil {
		return models.CartTotals{}, collaboratorFault("cart.ActiveLines", err)
	}
	return models.ComputeTotals(lines), nil
}
