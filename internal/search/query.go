package search

import (
	"context"
	"fmt"
	"strings"

	"luxestore/searchservice/internal/domain"
)

// Search serves one page of results from the current catalog.
//
// With neither query nor category it returns a random "discover" sample of
// up to limit products. With only a category it pages through that category
// in cache order. With a query it unions index hits per token, falling back
// to a substring scan when the index has nothing, then applies the category
// filter and paginates. CategoryCounts always cover the whole catalog.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	if request.Category != "" {
		if _, ok := domain.ParseCategory(string(request.Category)); !ok {
			return domain.SearchResponse{}, fmt.Errorf("%w: %q", ErrInvalidCategory, request.Category)
		}
	}

	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	page, limit := normalizePaging(request.Page, request.Limit)
	query := strings.TrimSpace(request.Query)

	if query == "" && request.Category == "" {
		sample := catalog.Products()
		s.shuffle(sample)
		if len(sample) > limit {
			sample = sample[:limit]
		}
		return domain.SearchResponse{
			Products:       sample,
			Total:          catalog.Len(),
			Page:           1,
			TotalPages:     totalPages(catalog.Len(), limit),
			CategoryCounts: catalog.counts,
		}, nil
	}

	var results []domain.Product
	if query == "" {
		results = filterCategory(catalog.products, request.Category)
	} else {
		results = filterCategory(matchQuery(catalog, query), request.Category)
	}
	return paginate(results, page, limit, catalog.counts), nil
}

// Counts returns per-category totals for the products matching query, or
// for the whole catalog when query is empty.
func (s *Service) Counts(ctx context.Context, query string) (domain.CategoryCounts, error) {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return domain.CategoryCounts{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return catalog.counts, nil
	}
	return CountByCategory(matchQuery(catalog, query)), nil
}

// Product looks up a single product by its category and id.
func (s *Service) Product(ctx context.Context, category domain.Category, id string) (domain.Product, error) {
	parsed, ok := domain.ParseCategory(string(category))
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	position, ok := catalog.byKey[domain.ProductKey(parsed, id)]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return catalog.products[position], nil
}

func matchQuery(catalog *Catalog, query string) []domain.Product {
	normalized := normalizeText(query)
	if positions := catalog.index.Lookup(tokenize(normalized)); len(positions) > 0 {
		hits := make([]domain.Product, 0, len(positions))
		for _, position := range positions {
			hits = append(hits, catalog.products[position])
		}
		return hits
	}
	return scanCatalog(catalog.products, normalized)
}

func scanCatalog(products []domain.Product, normalizedQuery string) []domain.Product {
	hits := make([]domain.Product, 0)
	for _, product := range products {
		if matchesSubstring(product, normalizedQuery) {
			hits = append(hits, product)
		}
	}
	return hits
}

func filterCategory(products []domain.Product, category domain.Category) []domain.Product {
	if category == "" {
		return products
	}
	filtered := make([]domain.Product, 0)
	for _, product := range products {
		if product.Type == category {
			filtered = append(filtered, product)
		}
	}
	return filtered
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if limit > domain.MaxSearchLimit {
		limit = domain.MaxSearchLimit
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

func paginate(results []domain.Product, page, limit int, counts domain.CategoryCounts) domain.SearchResponse {
	total := len(results)
	items := []domain.Product{}
	// Compare page counts before multiplying so huge pages cannot overflow.
	if page-1 < (total+limit-1)/limit {
		offset := (page - 1) * limit
		end := min(offset+limit, total)
		items = append(items, results[offset:end]...)
	}
	return domain.SearchResponse{
		Products:       items,
		Total:          total,
		Page:           page,
		TotalPages:     totalPages(total, limit),
		CategoryCounts: counts,
	}
}
