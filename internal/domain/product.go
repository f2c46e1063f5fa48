package domain

// Product is the catalog's view of a sellable item. Prices are in minor
// currency units.
type Product struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	DiscountPercent int    `json:"discount_percent"`
	Stock           int    `json:"stock"`
}

// FinalPrice is the unit price after the product's own discount,
// rounded half-up to the minor unit.
func (p Product) FinalPrice() int64 {
	return (p.Price*int64(100-p.DiscountPercent) + 50) / 100
}

func (p Product) InStock(quantity int) bool {
	return p.Stock >= quantity
}
