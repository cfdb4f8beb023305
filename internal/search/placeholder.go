package search

import "luxestore/searchservice/internal/domain"

// placeholderProducts is served only on a cold start with no upstream and no
// stored snapshot, and only while the placeholder policy is enabled.
func placeholderProducts() []domain.Product {
	return []domain.Product{
		{ID: "placeholder-sneaker-1", Type: domain.CategorySneakers, Brand: "Nike", ProductName: "Air Jordan 1 Retro High", Images: []string{}},
		{ID: "placeholder-sneaker-2", Type: domain.CategorySneakers, Brand: "Adidas", ProductName: "Yeezy Boost 350 V2", Images: []string{}},
		{ID: "placeholder-apparel-1", Type: domain.CategoryApparel, Brand: "Fear of God", ProductName: "Essentials Hoodie", Images: []string{}},
		{ID: "placeholder-accessory-1", Type: domain.CategoryAccessories, Brand: "Louis Vuitton", ProductName: "Keepall Bandouliere 50", Images: []string{}},
		{ID: "placeholder-perfume-1", Type: domain.CategoryPerfumes, Brand: "Creed", ProductName: "Aventus", Images: []string{}, Attributes: map[string]string{domain.AttrTitle: "Aventus"}},
		{ID: "placeholder-watch-1", Type: domain.CategoryWatches, Brand: "Rolex", ProductName: "Submariner Date", Images: []string{}, Attributes: map[string]string{domain.AttrName: "Submariner Date"}},
	}
}
