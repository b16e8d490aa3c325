package repo

import (
	"github.com/shopspring/decimal"

	"coffee-backend/internal/domain"
)

func vnd(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// DefaultMenu seeds the catalog for local runs and fresh databases.
func DefaultMenu() []domain.Product {
	return []domain.Product{
		{ID: "espresso", Name: "Espresso", Price: vnd(35000), Available: true},
		{ID: "ca-phe-sua-da", Name: "Cà phê sữa đá", Price: vnd(29000), Available: true, Sizes: []domain.SizeOption{
			{Name: "small", Price: vnd(29000)},
			{Name: "medium", Price: vnd(35000)},
			{Name: "large", Price: vnd(42000)},
		}},
		{ID: "bac-xiu", Name: "Bạc xỉu", Price: vnd(32000), Available: true},
		{ID: "latte", Name: "Latte", Price: vnd(45000), Available: true, Sizes: []domain.SizeOption{
			{Name: "medium", Price: vnd(45000)},
			{Name: "large", Price: vnd(55000)},
		}},
		{ID: "tra-dao", Name: "Trà đào cam sả", Price: vnd(39000), Available: true},
		{ID: "banh-mi", Name: "Bánh mì", Price: vnd(25000), Available: false},
	}
}
