package domain

import "github.com/shopspring/decimal"

// Product is the read-only catalog view the order builder prices against.
type Product struct {
	ID       int64
	Name     string
	SKU      string
	Price    decimal.Decimal
	Variants []ProductVariant
}

// ProductVariant carries a size/color specific SKU and an additive price modifier.
type ProductVariant struct {
	ID            int64
	SKU           string
	ColorName     string
	Size          string
	PriceModifier decimal.Decimal
}

// Variant returns the variant with the given id, if the product has it.
func (p Product) Variant(id int64) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}
