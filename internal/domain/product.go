package domain

import "github.com/shopspring/decimal"

type SizeOption struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Product is the read-only catalog view the order flow prices items with.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Sizes     []SizeOption    `json:"sizes,omitempty"`
	Available bool            `json:"available"`
}

// PriceFor returns the size specific price when the size exists.
func (p Product) PriceFor(size string) decimal.Decimal {
	for _, s := range p.Sizes {
		if s.Name == size {
			return s.Price
		}
	}
	return p.Price
}
