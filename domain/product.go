package domain

// Product is a catalog entry.
type Product struct {
	ID           string  `json:"_id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Details      string  `json:"details" yaml:"details"`
	Price        float64 `json:"price" yaml:"price"`
	ProductImage string  `json:"productImage" yaml:"product_image"`
}
