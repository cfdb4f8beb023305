package search

import (
	"slices"
	"strings"

	"luxestore/searchservice/internal/domain"
)

// Index maps a token to ascending positions in the product slice it was
// built from. It is only valid against that exact slice.
type Index map[string][]int

// BuildIndex is a pure function of products. Memory and build time are both
// linear in the catalog size; the index is rebuilt whole on every refresh.
func BuildIndex(products []domain.Product) Index {
	index := make(Index)
	for position, product := range products {
		text := normalizeText(strings.Join(searchableFields(product), " "))
		for _, token := range tokenize(text) {
			bucket := index[token]
			if n := len(bucket); n > 0 && bucket[n-1] == position {
				continue
			}
			index[token] = append(bucket, position)
		}
	}
	return index
}

// Lookup returns the ascending union of positions for tokens.
func (idx Index) Lookup(tokens []string) []int {
	if len(idx) == 0 || len(tokens) == 0 {
		return nil
	}
	seen := make(map[int]struct{})
	positions := make([]int, 0)
	for _, token := range tokens {
		for _, position := range idx[token] {
			if _, ok := seen[position]; ok {
				continue
			}
			seen[position] = struct{}{}
			positions = append(positions, position)
		}
	}
	slices.Sort(positions)
	return positions
}
