package parser

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase   = "https://blinkit.com"
	testMarker = "window.grofers.PRELOADED_STATE = "
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected []string
	}{
		{
			name: "distinct hrefs with same text, duplicate dropped",
			html: `<div>
				<a href="/cn/chips-crisps/cid/1/2">Snacks</a>
				<a href="/cn/biscuits/cid/1/3">Snacks</a>
				<a href="/cn/chips-crisps/cid/1/2">Snacks again</a>
			</div>`,
			expected: []string{
				"https://blinkit.com/cn/chips-crisps/cid/1/2",
				"https://blinkit.com/cn/biscuits/cid/1/3",
			},
		},
		{
			name:     "absolute link on same host kept",
			html:     `<a href="https://blinkit.com/cn/milk/cid/14/922">Milk</a>`,
			expected: []string{"https://blinkit.com/cn/milk/cid/14/922"},
		},
		{
			name: "other paths and hosts ignored",
			html: `<a href="/prn/x/prid/1">P</a>
				<a href="https://other.com/cn/milk">Milk</a>
				<a href="/categories">All</a>`,
			expected: []string{},
		},
		{
			name:     "no links",
			html:     `<html><body><p>nothing</p></body></html>`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			categories, err := ParseCategories(tt.html, testBase, "/cn/")
			require.NoError(t, err)
			require.NotNil(t, categories)

			urls := make([]string, 0, len(categories))
			for _, c := range categories {
				urls = append(urls, c.URL)
			}
			assert.Equal(t, tt.expected, urls)
		})
	}
}

func TestParseCategoriesKeepsFirstName(t *testing.T) {
	html := `<a href="/cn/a/cid/1">  Fresh
		Fruits </a><a href="/cn/a/cid/1">Other</a>`

	categories, err := ParseCategories(html, testBase, "/cn/")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Fresh Fruits", categories[0].Name)
}

func TestParseCategoriesInvalidBase(t *testing.T) {
	_, err := ParseCategories("<a href='/cn/x'>x</a>", "not a url", "/cn/")
	assert.Error(t, err)
}

func page(state string) string {
	return fmt.Sprintf(`<html><head>
		<script>var other = 1;</script>
		<script>%s%s;</script>
	</head><body></body></html>`, testMarker, state)
}

func TestParseProductPageMinimalVariant(t *testing.T) {
	html := page(`{"data":{"ui":{"pdp":{"rawData":{"data":{"variants_info":[{"id":"7","name":"A"}]}}}}}}`)

	records, err := ParseProductPage(html, "99", "https://blinkit.com/prn/a/prid/7", testMarker)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "7", r.ProductID)
	require.NotNil(t, r.Name)
	assert.Equal(t, "A", *r.Name)
	assert.Nil(t, r.GroupID)
	assert.Nil(t, r.Brand)
	assert.Nil(t, r.CategoryL0)
	assert.Nil(t, r.Price)
	assert.Nil(t, r.Inventory)
	assert.Nil(t, r.Ingredients)
	assert.Empty(t, r.ImageURLs)
	assert.NotNil(t, r.ImageURLs)
	assert.Empty(t, r.NutritionInfo)
	assert.NotNil(t, r.NutritionInfo)
	assert.Equal(t, "https://blinkit.com/prn/a/prid/7", r.ProductURL)
}

func TestParseProductPageMissingMarker(t *testing.T) {
	records, err := ParseProductPage(`<html><script>var x = {};</script></html>`, "1", "u", testMarker)
	assert.ErrorIs(t, err, ErrMalformedEmbeddedState)
	assert.Empty(t, records)
}

func TestParseProductPageMalformedJSON(t *testing.T) {
	records, err := ParseProductPage(page(`{"data": {`), "1", "u", testMarker)
	assert.ErrorIs(t, err, ErrMalformedEmbeddedState)
	assert.Empty(t, records)
}

func TestExtractEmbeddedStateIgnoresTrailingStatements(t *testing.T) {
	html := `<script>` + testMarker + `{"a":1};window.x = {"b":2};</script>`

	state, err := ExtractEmbeddedState(html, testMarker)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), state["a"])
	assert.NotContains(t, state, "b")
}

func TestNormalizeStateFallbacks(t *testing.T) {
	t.Run("single product fallback", func(t *testing.T) {
		state := decode(t, `{"data":{"ui":{"pdp":{"rawData":{"data":{"product":{"name":"Solo"}}}}}}}`)

		records, err := NormalizeState(state, "42", "u")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "42", records[0].ProductID)
	})

	t.Run("empty variants falls back to product", func(t *testing.T) {
		state := decode(t, `{"data":{"ui":{"pdp":{"rawData":{"data":{"variants_info":[],"product":{"id":5}}}}}}}`)

		records, err := NormalizeState(state, "42", "u")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "5", records[0].ProductID)
	})

	t.Run("no product data", func(t *testing.T) {
		state := decode(t, `{"data":{"ui":{"pdp":{}}}}`)

		records, err := NormalizeState(state, "42", "u")
		assert.ErrorIs(t, err, ErrNoProductData)
		assert.Empty(t, records)
	})
}

func TestNormalizeStateIdentifierFallback(t *testing.T) {
	state := decode(t, `{"data":{"ui":{"pdp":{"rawData":{"data":{"variants_info":[
		{"id":"1"},
		{"product_id":2},
		{"prid":"3","group_id":"g"},
		{"group_id":"g"},
		"not an object"
	]}}}}}}`)

	t.Run("outer identifier fills the gap", func(t *testing.T) {
		records, err := NormalizeState(state, "outer", "u")
		require.NoError(t, err)

		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ProductID)
		}
		assert.Equal(t, []string{"1", "2", "3", "outer"}, ids)
	})

	t.Run("variant without any identifier is skipped", func(t *testing.T) {
		records, err := NormalizeState(state, "", "u")
		require.NoError(t, err)
		assert.Len(t, records, 3)
		assert.LessOrEqual(t, len(records), 5)
	})
}

func TestNormalizeStateFullVariant(t *testing.T) {
	state := decode(t, `{"data":{"ui":{"pdp":{"rawData":{"data":{"variants_info":[{
		"id": 123,
		"group_id": 55,
		"name": "Amul Butter",
		"brand": "Amul",
		"level0_category": [{"name": "Dairy"}, {"name": "Ignored"}],
		"level1_category": [],
		"unit": "100 g",
		"price": 56,
		"mrp": "58.5",
		"inventory": 12,
		"assets": [
			{"media_type": "image", "image": {"url": "https://cdn/a.jpg"}},
			{"media_type": "video", "image": {"url": "https://cdn/v.mp4"}},
			{"media_type": "image", "image": {"url": ""}},
			{"media_type": "image"}
		],
		"attribute_collection": [{"attributes": [
			{"title": "Nutrition Information", "value": "Per 100 g\nEnergy: 720 kcal\nFat : 81 g\nno colon here"},
			{"title": "Ingredients", "value": "  Milk fat, salt  "},
			{"title": "Key Features", "value": ""},
			{"title": "Shelf Life", "value": "6 months"}
		]}]
	}]}}}}}}`)

	records, err := NormalizeState(state, "123", "https://blinkit.com/prn/amul/prid/123")
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]

	assert.Equal(t, "123", r.ProductID)
	assert.Equal(t, "55", *r.GroupID)
	assert.Equal(t, "Amul", *r.Brand)
	assert.Equal(t, "Dairy", *r.CategoryL0)
	assert.Nil(t, r.CategoryL1)
	assert.Equal(t, "100 g", *r.Unit)
	assert.Equal(t, 56.0, *r.Price)
	assert.Equal(t, 58.5, *r.OriginalPrice)
	assert.Equal(t, int64(12), *r.Inventory)
	assert.Equal(t, []string{"https://cdn/a.jpg"}, r.ImageURLs)
	assert.Equal(t, map[string]string{
		"serving_size": "100 g",
		"Energy":       "720 kcal",
		"Fat":          "81 g",
	}, r.NutritionInfo)
	assert.Equal(t, "Milk fat, salt", *r.Ingredients)
	assert.Nil(t, r.KeyFeatures)
}

func TestParseNutrition(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"no serving line", "Protein: 3 g\nSugar: 1 g", map[string]string{"Protein": "3 g", "Sugar": "1 g"}},
		{"serving only", "Per 1 piece", map[string]string{"serving_size": "1 piece"}},
		{"value with colon", "Time: 10:30", map[string]string{"Time": "10:30"}},
		{"empty key dropped", ": orphan\nFat: 2 g", map[string]string{"Fat": "2 g"}},
		{"crlf lines", "Per 100 ml\r\nEnergy: 40 kcal\r\n", map[string]string{"serving_size": "100 ml", "Energy": "40 kcal"}},
		{"per not first line", "Energy: 1\nPer 100 g", map[string]string{"Energy": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseNutrition(tt.text))
		})
	}
}

func TestParseNutritionReparse(t *testing.T) {
	parsed := ParseNutrition("Per 100 g\nEnergy: 720 kcal\nFat: 81 g")

	again := ParseNutrition(FormatNutrition(parsed))
	assert.Equal(t, parsed, again)

	lossy := map[string]string{"a:b": "c"}
	assert.NotPanics(t, func() { ParseNutrition(FormatNutrition(lossy)) })
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}
