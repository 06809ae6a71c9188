package storage

import (
	"context"
	"testing"
)

func TestApplySeed(t *testing.T) {
	m := NewMemoryStore(0)
	if err := ApplySeed(m, []byte(DefaultSeed)); err != nil {
		t.Fatalf("ApplySeed() error = %v", err)
	}

	ctx := context.Background()
	rate, _ := m.CurrentRate(ctx)
	if rate != 40 {
		t.Errorf("CurrentRate() = %v, want 40", rate)
	}
	banks, _ := m.ListBanks(ctx)
	if len(banks) != 4 {
		t.Errorf("ListBanks() = %d banks, want 4", len(banks))
	}
	c, err := m.FindByID(ctx, []string{"V12345678"})
	if err != nil || c.Name != "Maria Perez" {
		t.Errorf("FindByID() = %v, %v", c, err)
	}

	// out-of-stock product is not searchable
	rows, _ := m.SearchExact(ctx, "azucar")
	if len(rows) != 0 {
		t.Errorf("SearchExact(azucar) = %d rows, want 0", len(rows))
	}
}

func TestApplySeed_InvalidYAML(t *testing.T) {
	if err := ApplySeed(NewMemoryStore(0), []byte("products: [")); err == nil {
		t.Error("ApplySeed() should fail on invalid YAML")
	}
}
