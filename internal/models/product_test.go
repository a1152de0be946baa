package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductRecordDefaults(t *testing.T) {
	r := NewProductRecord("7", "https://blinkit.com/prn/product/prid/7")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	expected := `{"product_id":"7","group_id":null,"name":null,"brand":null,` +
		`"category_l0":null,"category_l1":null,"unit":null,"price":null,` +
		`"original_price":null,"inventory":null,` +
		`"product_url":"https://blinkit.com/prn/product/prid/7","image_urls":[],` +
		`"nutrition_info":{},"ingredients":null,"key_features":null}`
	assert.Equal(t, expected, string(data))
}

func TestProductRecordValidate(t *testing.T) {
	negative := -1.0

	tests := []struct {
		name   string
		record ProductRecord
		errs   int
	}{
		{"valid", NewProductRecord("1", "https://x/prid/1"), 0},
		{"missing id", NewProductRecord("", "https://x/prid/1"), 1},
		{"missing url and id", NewProductRecord("", ""), 2},
		{"negative price", ProductRecord{ProductID: "1", ProductURL: "u", Price: &negative}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.record.Validate(), tt.errs)
		})
	}
}
