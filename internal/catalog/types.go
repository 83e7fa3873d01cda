package catalog

import "time"

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Product is a sellable catalog entry, keyed by SKU. The catalog is
// read-only here; management lives outside this service.
type Product struct {
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Images      []Image   `json:"images"`
	Price       float64   `json:"price"`
	Stock       *int      `json:"stock,omitempty"`
	Active      bool      `json:"active"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Lookup carries the hints available for resolving one product. Any
// subset of the fields may be set.
type Lookup struct {
	SKU      string
	Query    string
	Category string
}
