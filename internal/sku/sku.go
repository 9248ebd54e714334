// Package sku parses compound SKU strings into structured items, options
// and bundles.
//
// Grammar: a compound SKU is a comma-separated list of terms. A term is
// either a single item `BASE[-opt~val[*qty]]...` or a pipe-separated bundle
// of such items. Parsing is total: malformed segments degrade to a base SKU
// with no options rather than failing.
package sku

import (
	"strconv"
	"strings"
)

// SkuOption is a single `code~value` pair attached to an item, optionally
// with a quantity suffix `*N`.
type SkuOption struct {
	Code     string `json:"code"`
	Value    string `json:"value"`
	Quantity int    `json:"quantity"`
}

func (o SkuOption) String() string {
	var b strings.Builder
	b.WriteString(o.Code)
	if o.Value != "" {
		b.WriteString("~")
		b.WriteString(o.Value)
	}
	if o.Quantity > 1 {
		b.WriteString("*")
		b.WriteString(strconv.Itoa(o.Quantity))
	}
	return b.String()
}

// ParsedItem is a single item with its options.
type ParsedItem struct {
	SKU      string      `json:"sku"`
	Options  []SkuOption `json:"options"`
	Quantity int         `json:"quantity"`
}

func (i ParsedItem) String() string {
	var b strings.Builder
	b.WriteString(i.SKU)
	if i.Quantity > 1 {
		b.WriteString("*")
		b.WriteString(strconv.Itoa(i.Quantity))
	}
	for _, opt := range i.Options {
		b.WriteString("-")
		b.WriteString(opt.String())
	}
	return b.String()
}

// BundleItem is a pipe-separated group of items sold together. Hash is a
// deterministic function of the sorted base SKUs, so the same set hashes
// identically regardless of order; it is the discount-lookup key.
type BundleItem struct {
	Items []ParsedItem `json:"items"`
	Hash  string       `json:"hash"`
}

func (b BundleItem) String() string {
	parts := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, "|")
}

// BaseSKUs returns the option-stripped base SKUs of the bundle.
func (b BundleItem) BaseSKUs() []string {
	skus := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		skus = append(skus, item.SKU)
	}
	return skus
}

// ParsedOrder is the result of parsing a compound SKU string.
type ParsedOrder struct {
	Items   []ParsedItem `json:"items"`
	Bundles []BundleItem `json:"bundles"`

	// terms preserves the original term order for reconstruction
	terms []term
}

type term struct {
	bundle bool
	index  int
}

// String reconstructs the canonical form of the compound SKU: upper-cased
// SKUs, lower-cased option codes/values, no whitespace, quantities only
// when above one.
func (p ParsedOrder) String() string {
	parts := make([]string, 0, len(p.terms))
	for _, t := range p.terms {
		if t.bundle {
			parts = append(parts, p.Bundles[t.index].String())
		} else {
			parts = append(parts, p.Items[t.index].String())
		}
	}
	return strings.Join(parts, ",")
}

// AllItems returns every item, standalone and bundled.
func (p ParsedOrder) AllItems() []ParsedItem {
	items := make([]ParsedItem, 0, len(p.Items))
	items = append(items, p.Items...)
	for _, b := range p.Bundles {
		items = append(items, b.Items...)
	}
	return items
}

// Parse parses a compound SKU string. It never fails: empty or malformed
// terms are skipped or degrade to plain base SKUs.
func Parse(s string) ParsedOrder {
	order := ParsedOrder{}

	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if strings.Contains(raw, "|") {
			bundle := parseBundle(raw)
			if len(bundle.Items) == 0 {
				continue
			}
			order.Bundles = append(order.Bundles, bundle)
			order.terms = append(order.terms, term{bundle: true, index: len(order.Bundles) - 1})
			continue
		}

		item := parseItem(raw)
		if item.SKU == "" {
			continue
		}
		order.Items = append(order.Items, item)
		order.terms = append(order.terms, term{bundle: false, index: len(order.Items) - 1})
	}

	return order
}

func parseBundle(raw string) BundleItem {
	bundle := BundleItem{}
	for _, part := range strings.Split(raw, "|") {
		item := parseItem(strings.TrimSpace(part))
		if item.SKU == "" {
			continue
		}
		bundle.Items = append(bundle.Items, item)
	}
	bundle.Hash = HashBundle(bundle.BaseSKUs())
	return bundle
}

func parseItem(raw string) ParsedItem {
	item := ParsedItem{Quantity: 1}
	if raw == "" {
		return item
	}

	segments := strings.Split(raw, "-")

	// The base SKU is the leading run of segments without a `~`; hyphenated
	// SKUs like "USB-HUB" stay intact as long as no segment carries options.
	baseEnd := len(segments)
	for i, seg := range segments {
		if strings.Contains(seg, "~") {
			baseEnd = i
			break
		}
	}
	base := strings.Join(segments[:baseEnd], "-")

	base, qty := splitQuantity(base)
	item.SKU = strings.ToUpper(strings.TrimSpace(base))
	item.Quantity = qty

	for _, seg := range segments[baseEnd:] {
		seg = strings.ToLower(strings.TrimSpace(seg))
		if seg == "" {
			continue
		}
		seg, qty := splitQuantity(seg)
		opt := SkuOption{Quantity: qty}
		if code, value, ok := strings.Cut(seg, "~"); ok {
			opt.Code = code
			opt.Value = value
		} else {
			// Stray segment after options: keep it round-trippable as a
			// bare option code.
			opt.Code = seg
		}
		if opt.Code == "" {
			continue
		}
		item.Options = append(item.Options, opt)
	}

	return item
}

// splitQuantity strips a trailing `*N` suffix, defaulting to 1.
func splitQuantity(s string) (string, int) {
	base, qtyStr, ok := strings.Cut(s, "*")
	if !ok {
		return s, 1
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyStr))
	if err != nil || qty < 1 {
		return base, 1
	}
	return base, qty
}
