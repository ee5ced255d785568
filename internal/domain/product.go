package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога.
type Product struct {
	ID          string
	Name        string
	Description string
	// PriceUSD и PriceINR: цена в двух валютах, без взаимной проверки.
	PriceUSD  decimal.Decimal
	PriceINR  decimal.Decimal
	Category  string
	Image     string
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductPatch описывает частичное обновление товара: nil-поле не изменяется.
type ProductPatch struct {
	Name        *string
	Description *string
	PriceUSD    *decimal.Decimal
	PriceINR    *decimal.Decimal
	Category    *string
	Image       *string
	Stock       *int
}

// IsEmpty сообщает, что патч не меняет ни одного поля.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.PriceUSD == nil && p.PriceINR == nil &&
		p.Category == nil && p.Image == nil && p.Stock == nil
}

// Apply переносит заданные поля патча в товар.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.PriceUSD != nil {
		product.PriceUSD = *p.PriceUSD
	}
	if p.PriceINR != nil {
		product.PriceINR = *p.PriceINR
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
}
