package parser

import (
	"errors"

	"github.com/maltedev/grocery-scraper/internal/models"
)

var (
	ErrMalformedEmbeddedState = errors.New("embedded state missing or malformed")
	ErrNoProductData          = errors.New("no product data in embedded state")
)

const (
	AttrNutrition   = "Nutrition Information"
	AttrIngredients = "Ingredients"
	AttrKeyFeatures = "Key Features"
)

// Parser turns fetched markup into domain values. The site adapter supplies
// the path prefix and the state marker.
type Parser interface {
	ParseCategories(html, baseURL, pathPrefix string) ([]models.Category, error)
	ParseProductPage(html, productID, pageURL string) ([]models.ProductRecord, error)
}

type StateParser struct {
	marker string
}

func NewStateParser(marker string) *StateParser {
	return &StateParser{marker: marker}
}

func (p *StateParser) ParseCategories(html, baseURL, pathPrefix string) ([]models.Category, error) {
	return ParseCategories(html, baseURL, pathPrefix)
}

func (p *StateParser) ParseProductPage(html, productID, pageURL string) ([]models.ProductRecord, error) {
	return ParseProductPage(html, productID, pageURL, p.marker)
}
