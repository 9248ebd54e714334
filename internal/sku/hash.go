package sku

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HashBundle computes the discount-lookup key for a set of base SKUs.
// Input order and case never affect the result: the SKUs are upper-cased
// and sorted before hashing, so LAPTOP|MOUSE and mouse|laptop collide by
// design.
func HashBundle(baseSKUs []string) string {
	normalized := make([]string, 0, len(baseSKUs))
	for _, s := range baseSKUs {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		normalized = append(normalized, s)
	}
	sort.Strings(normalized)

	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
