package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/telehostca/chatbot-backend/internal/models"
)

// Seed is a YAML fixture for the in-memory store
type Seed struct {
	Rate     float64 `yaml:"rate"`
	Products []struct {
		Code  string  `yaml:"code"`
		Name  string  `yaml:"name"`
		Price float64 `yaml:"price"`
		Tax   float64 `yaml:"tax"`
		Stock float64 `yaml:"stock"`
	} `yaml:"products"`
	Banks []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"banks"`
	Customers []struct {
		Code     string `yaml:"code"`
		Name     string `yaml:"name"`
		IDNumber string `yaml:"id_number"`
		Phone1   string `yaml:"phone1"`
		Phone2   string `yaml:"phone2"`
	} `yaml:"customers"`
}

// LoadSeed reads a fixture file into the memory store
func LoadSeed(m *MemoryStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", path, err)
	}
	return ApplySeed(m, data)
}

// ApplySeed loads fixture YAML into the memory store
func ApplySeed(m *MemoryStore, data []byte) error {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if seed.Rate > 0 {
		m.SetRate(seed.Rate)
	}
	for _, p := range seed.Products {
		m.AddProduct(models.Product{Code: p.Code, Name: p.Name, PriceUSD: p.Price, TaxRate: p.Tax, Stock: p.Stock})
	}
	for _, b := range seed.Banks {
		m.AddBank(models.Bank{Code: b.Code, Name: b.Name})
	}
	for _, c := range seed.Customers {
		m.AddCustomer(models.Customer{
			Code:     c.Code,
			Name:     c.Name,
			IDNumber: c.IDNumber,
			Phone1:   c.Phone1,
			Phone2:   c.Phone2,
			IsActive: true,
		})
	}
	return nil
}

// DefaultSeed is the demo catalog used by the chat console when no fixture is given
const DefaultSeed = `
rate: 40
products:
  - {code: "P001", name: "Harina PAN 1kg", price: 1.20, tax: 0, stock: 150}
  - {code: "P002", name: "Harina de trigo Robin Hood 1kg", price: 1.50, tax: 0, stock: 40}
  - {code: "P003", name: "Aceite Mazeite 1L", price: 3.10, tax: 16, stock: 60}
  - {code: "P004", name: "Aceite de oliva Carbonell 500ml", price: 7.80, tax: 16, stock: 12}
  - {code: "P005", name: "Leche completa Campestre 1L", price: 1.90, tax: 0, stock: 80}
  - {code: "P006", name: "Arroz Mary 1kg", price: 1.35, tax: 0, stock: 200}
  - {code: "P007", name: "Cafe Fama de America 500g", price: 4.20, tax: 16, stock: 30}
  - {code: "P008", name: "Azucar Montalban 1kg", price: 1.40, tax: 0, stock: 0}
banks:
  - {code: "0102", name: "Banco de Venezuela"}
  - {code: "0105", name: "Banco Mercantil"}
  - {code: "0108", name: "Banco Provincial"}
  - {code: "0134", name: "Banesco"}
customers:
  - {code: "V12345678", name: "Maria Perez", id_number: "V12345678", phone1: "04141234567"}
`
