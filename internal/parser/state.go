package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/grocery-scraper/internal/models"
)

// ExtractEmbeddedState finds the script that assigns a JSON literal after
// marker and decodes it. Anything after the literal, such as the statement
// terminator or further assignments, is ignored.
func ExtractEmbeddedState(html, marker string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbeddedState, err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, marker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, fmt.Errorf("%w: marker %q not found", ErrMalformedEmbeddedState, strings.TrimSpace(marker))
	}

	literal := strings.TrimSpace(script[strings.Index(script, marker)+len(marker):])

	dec := json.NewDecoder(strings.NewReader(literal))
	dec.UseNumber()

	var state map[string]any
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbeddedState, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state is null", ErrMalformedEmbeddedState)
	}
	return state, nil
}

func ParseProductPage(html, productID, pageURL, marker string) ([]models.ProductRecord, error) {
	state, err := ExtractEmbeddedState(html, marker)
	if err != nil {
		return []models.ProductRecord{}, err
	}
	return NormalizeState(state, productID, pageURL)
}

// NormalizeState flattens every variant under data.ui.pdp.rawData.data into
// one record. A page without variants_info falls back to its single product.
func NormalizeState(state map[string]any, productID, pageURL string) ([]models.ProductRecord, error) {
	data := dig(state, "data", "ui", "pdp", "rawData", "data")

	variants, _ := data["variants_info"].([]any)
	if len(variants) == 0 {
		product, ok := data["product"].(map[string]any)
		if !ok || len(product) == 0 {
			return []models.ProductRecord{}, fmt.Errorf("%w for ID %s", ErrNoProductData, productID)
		}
		slog.Warn("variants_info not found, using single product data", "product_id", productID)
		variants = []any{product}
	}

	records := make([]models.ProductRecord, 0, len(variants))
	for _, v := range variants {
		variant, ok := v.(map[string]any)
		if !ok {
			continue
		}

		id := variantID(variant, productID)
		if id == "" {
			slog.Warn("skipping variant without identifier", "name", stringField(variant, "name"))
			continue
		}

		records = append(records, normalizeVariant(variant, id, pageURL))
	}

	return records, nil
}

func normalizeVariant(v map[string]any, id, pageURL string) models.ProductRecord {
	rec := models.NewProductRecord(id, pageURL)

	rec.GroupID = optionalString(v["group_id"])
	rec.Name = optionalString(v["name"])
	rec.Brand = optionalString(v["brand"])
	rec.CategoryL0 = firstName(v["level0_category"])
	rec.CategoryL1 = firstName(v["level1_category"])
	rec.Unit = optionalString(v["unit"])
	rec.Price = optionalFloat(v["price"])
	rec.OriginalPrice = optionalFloat(v["mrp"])
	rec.Inventory = optionalInt(v["inventory"])
	rec.ImageURLs = imageURLs(v["assets"])

	var nutrition string
	collections, _ := v["attribute_collection"].([]any)
	for _, c := range collections {
		collection, _ := c.(map[string]any)
		attrs, _ := collection["attributes"].([]any)
		for _, a := range attrs {
			attr, _ := a.(map[string]any)
			value := strings.TrimSpace(stringField(attr, "value"))
			if value == "" {
				continue
			}
			switch stringField(attr, "title") {
			case AttrNutrition:
				nutrition = value
			case AttrIngredients:
				rec.Ingredients = &value
			case AttrKeyFeatures:
				rec.KeyFeatures = &value
			}
		}
	}
	if nutrition != "" {
		rec.NutritionInfo = ParseNutrition(nutrition)
	}

	return rec
}

// variantID prefers the variant's own identifiers. group_id is shared by
// siblings and never identifies a single variant.
func variantID(v map[string]any, fallback string) string {
	for _, key := range []string{"id", "product_id", "prid"} {
		if s := scalarString(v[key]); s != "" {
			return s
		}
	}
	return fallback
}

func dig(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return map[string]any{}
		}
		cur = next
	}
	return cur
}

func firstName(v any) *string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}
	return optionalString(first["name"])
}

func imageURLs(v any) []string {
	urls := make([]string, 0)
	assets, _ := v.([]any)
	for _, a := range assets {
		asset, ok := a.(map[string]any)
		if !ok || stringField(asset, "media_type") != "image" {
			continue
		}
		image, _ := asset["image"].(map[string]any)
		if u := stringField(image, "url"); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func optionalString(v any) *string {
	switch v.(type) {
	case string, json.Number, float64:
		s := scalarString(v)
		return &s
	default:
		return nil
	}
}

func optionalFloat(v any) *float64 {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &f
}

func optionalInt(v any) *int64 {
	f := optionalFloat(v)
	if f == nil {
		return nil
	}
	i := int64(*f)
	return &i
}
