package models

import "time"

// Category is one listing page discovered on the categories page.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProductRecord is the flat form of one product variant. Field order is the
// order records are written in.
type ProductRecord struct {
	ProductID     string            `json:"product_id"`
	GroupID       *string           `json:"group_id"`
	Name          *string           `json:"name"`
	Brand         *string           `json:"brand"`
	CategoryL0    *string           `json:"category_l0"`
	CategoryL1    *string           `json:"category_l1"`
	Unit          *string           `json:"unit"`
	Price         *float64          `json:"price"`
	OriginalPrice *float64          `json:"original_price"`
	Inventory     *int64            `json:"inventory"`
	ProductURL    string            `json:"product_url"`
	ImageURLs     []string          `json:"image_urls"`
	NutritionInfo map[string]string `json:"nutrition_info"`
	Ingredients   *string           `json:"ingredients"`
	KeyFeatures   *string           `json:"key_features"`
}

// NewProductRecord returns a record with every collection initialised so that
// unset fields serialise as null or empty, never missing.
func NewProductRecord(productID, productURL string) ProductRecord {
	return ProductRecord{
		ProductID:     productID,
		ProductURL:    productURL,
		ImageURLs:     make([]string, 0),
		NutritionInfo: make(map[string]string),
	}
}

// CategoryIDs is the checkpointed outcome of one listing pass.
type CategoryIDs struct {
	Name       string    `json:"name"`
	ProductIDs []string  `json:"product_ids"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

func (r *ProductRecord) Validate() []string {
	var errors []string

	if r.ProductID == "" {
		errors = append(errors, "product_id is required")
	}

	if r.ProductURL == "" {
		errors = append(errors, "product_url is required")
	}

	if r.Price != nil && *r.Price < 0 {
		errors = append(errors, "price must not be negative")
	}

	return errors
}
