package sku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleItem(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantSKU  string
		wantQty  int
		wantOpts []SkuOption
	}{
		{
			name:    "bare sku",
			input:   "LAPTOP15",
			wantSKU: "LAPTOP15",
			wantQty: 1,
		},
		{
			name:    "lowercase sku is normalized",
			input:   "laptop15",
			wantSKU: "LAPTOP15",
			wantQty: 1,
		},
		{
			name:    "sku with quantity",
			input:   "LAPTOP15*3",
			wantSKU: "LAPTOP15",
			wantQty: 3,
		},
		{
			name:    "single option",
			input:   "LAPTOP15-ram~16gb",
			wantSKU: "LAPTOP15",
			wantQty: 1,
			wantOpts: []SkuOption{
				{Code: "ram", Value: "16gb", Quantity: 1},
			},
		},
		{
			name:    "multiple options with quantities",
			input:   "LAPTOP15-ram~16gb-ssd~1tb*2",
			wantSKU: "LAPTOP15",
			wantQty: 1,
			wantOpts: []SkuOption{
				{Code: "ram", Value: "16gb", Quantity: 1},
				{Code: "ssd", Value: "1tb", Quantity: 2},
			},
		},
		{
			name:    "hyphenated base sku stays intact",
			input:   "USB-HUB-ports~4",
			wantSKU: "USB-HUB",
			wantQty: 1,
			wantOpts: []SkuOption{
				{Code: "ports", Value: "4", Quantity: 1},
			},
		},
		{
			name:    "zero quantity degrades to one",
			input:   "LAPTOP15*0",
			wantSKU: "LAPTOP15",
			wantQty: 1,
		},
		{
			name:    "malformed quantity degrades to one",
			input:   "LAPTOP15*abc",
			wantSKU: "LAPTOP15",
			wantQty: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.input)
			require.Len(t, parsed.Items, 1)
			require.Empty(t, parsed.Bundles)

			item := parsed.Items[0]
			assert.Equal(t, tt.wantSKU, item.SKU)
			assert.Equal(t, tt.wantQty, item.Quantity)
			assert.Equal(t, tt.wantOpts, item.Options)
		})
	}
}

func TestParseCompound(t *testing.T) {
	parsed := Parse("LAPTOP15-ram~16gb, MOUSE*2, KEYBOARD|MOUSEPAD-size~xl")

	require.Len(t, parsed.Items, 2)
	require.Len(t, parsed.Bundles, 1)

	assert.Equal(t, "LAPTOP15", parsed.Items[0].SKU)
	assert.Equal(t, "MOUSE", parsed.Items[1].SKU)
	assert.Equal(t, 2, parsed.Items[1].Quantity)

	bundle := parsed.Bundles[0]
	require.Len(t, bundle.Items, 2)
	assert.Equal(t, []string{"KEYBOARD", "MOUSEPAD"}, bundle.BaseSKUs())
	assert.NotEmpty(t, bundle.Hash)
}

func TestParseIsTotal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantItems int
	}{
		{name: "empty string", input: "", wantItems: 0},
		{name: "only separators", input: ",,,", wantItems: 0},
		{name: "whitespace terms", input: "  ,  ", wantItems: 0},
		{name: "empty bundle segments", input: "|||", wantItems: 0},
		{name: "partial bundle keeps valid items", input: "LAPTOP| |MOUSE", wantItems: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.input)
			assert.Len(t, parsed.Items, tt.wantItems)
		})
	}

	// A bundle with blank segments keeps the parseable ones.
	parsed := Parse("LAPTOP| |MOUSE")
	require.Len(t, parsed.Bundles, 1)
	assert.Equal(t, []string{"LAPTOP", "MOUSE"}, parsed.Bundles[0].BaseSKUs())
}

func TestStringRoundTrip(t *testing.T) {
	tests := []string{
		"LAPTOP15",
		"LAPTOP15*3",
		"LAPTOP15-ram~16gb",
		"LAPTOP15-ram~16gb-ssd~1tb*2",
		"LAPTOP15-ram~16gb,MOUSE*2",
		"KEYBOARD|MOUSEPAD-size~xl",
		"LAPTOP15,KEYBOARD|MOUSEPAD,MOUSE",
		"USB-HUB-ports~4",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			canonical := Parse(input).String()
			assert.Equal(t, input, canonical)

			// The canonical form must be a fixed point.
			assert.Equal(t, canonical, Parse(canonical).String())
		})
	}
}

func TestCanonicalNormalization(t *testing.T) {
	// Case and whitespace normalize away, quantity of one is dropped.
	parsed := Parse(" laptop15*1 - RAM~16GB , mouse ")
	assert.Equal(t, "LAPTOP15-ram~16gb,MOUSE", parsed.String())
}

func TestHashBundleOrderIndependent(t *testing.T) {
	a := HashBundle([]string{"LAPTOP", "MOUSE", "KEYBOARD"})
	b := HashBundle([]string{"MOUSE", "KEYBOARD", "LAPTOP"})
	c := HashBundle([]string{"keyboard", " laptop ", "MOUSE"})

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Len(t, a, 16)

	// Different sets must not collide.
	assert.NotEqual(t, a, HashBundle([]string{"LAPTOP", "MOUSE"}))
}

func TestHashBundleMatchesParsed(t *testing.T) {
	first := Parse("KEYBOARD|MOUSEPAD").Bundles[0]
	second := Parse("MOUSEPAD|KEYBOARD").Bundles[0]
	assert.Equal(t, first.Hash, second.Hash)
}
