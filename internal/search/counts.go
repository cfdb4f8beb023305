package search

import "luxestore/searchservice/internal/domain"

// CountByCategory tallies products per facet. Unknown types are ignored.
func CountByCategory(products []domain.Product) domain.CategoryCounts {
	var counts domain.CategoryCounts
	for _, product := range products {
		counts.Add(product.Type)
	}
	return counts
}
