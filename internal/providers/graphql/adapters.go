package graphql

import (
	"strings"

	"luxestore/searchservice/internal/domain"
)

type sneakerRecord struct {
	ID          string   `json:"id"`
	Brand       string   `json:"brand"`
	ProductName string   `json:"productName"`
	Images      []string `json:"images"`
	ProductLink string   `json:"productLink"`
}

type apparelRecord = sneakerRecord

type accessoryRecord = sneakerRecord

type perfumeRecord struct {
	ID     string   `json:"id"`
	Brand  string   `json:"brand"`
	Title  string   `json:"title"`
	Images []string `json:"images"`
	URL    string   `json:"url"`
}

type watchRecord struct {
	ID     string   `json:"id"`
	Brand  string   `json:"brand"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
	Link   string   `json:"link"`
}

type allProductsData struct {
	Sneakers    []sneakerRecord   `json:"sneakers"`
	Apparel     []apparelRecord   `json:"apparel"`
	Accessories []accessoryRecord `json:"accessories"`
	Perfumes    []perfumeRecord   `json:"perfumes"`
	Watches     []watchRecord     `json:"watches"`
}

func (d *allProductsData) products() []domain.Product {
	total := len(d.Sneakers) + len(d.Apparel) + len(d.Accessories) + len(d.Perfumes) + len(d.Watches)
	items := make([]domain.Product, 0, total)
	for _, record := range d.Sneakers {
		items = append(items, adaptSneaker(record))
	}
	for _, record := range d.Apparel {
		items = append(items, adaptApparel(record))
	}
	for _, record := range d.Accessories {
		items = append(items, adaptAccessory(record))
	}
	for _, record := range d.Perfumes {
		items = append(items, adaptPerfume(record))
	}
	for _, record := range d.Watches {
		items = append(items, adaptWatch(record))
	}
	return items
}

// CoalesceName returns the first non-blank candidate, trimmed.
func CoalesceName(productName, title, name string) string {
	for _, candidate := range []string{productName, title, name} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}

func adaptSneaker(record sneakerRecord) domain.Product {
	return adaptLinked(domain.CategorySneakers, record)
}

func adaptApparel(record apparelRecord) domain.Product {
	return adaptLinked(domain.CategoryApparel, record)
}

func adaptAccessory(record accessoryRecord) domain.Product {
	return adaptLinked(domain.CategoryAccessories, record)
}

func adaptLinked(category domain.Category, record sneakerRecord) domain.Product {
	return domain.Product{
		ID:          strings.TrimSpace(record.ID),
		Type:        category,
		Brand:       strings.TrimSpace(record.Brand),
		ProductName: CoalesceName(record.ProductName, "", ""),
		Images:      normalizeImages(record.Images),
		Attributes:  attributes(domain.AttrProductLink, record.ProductLink),
	}
}

func adaptPerfume(record perfumeRecord) domain.Product {
	attrs := attributes(domain.AttrURL, record.URL)
	attrs = withAttribute(attrs, domain.AttrTitle, record.Title)
	return domain.Product{
		ID:          strings.TrimSpace(record.ID),
		Type:        domain.CategoryPerfumes,
		Brand:       strings.TrimSpace(record.Brand),
		ProductName: CoalesceName("", record.Title, ""),
		Images:      normalizeImages(record.Images),
		Attributes:  attrs,
	}
}

func adaptWatch(record watchRecord) domain.Product {
	attrs := attributes(domain.AttrLink, record.Link)
	attrs = withAttribute(attrs, domain.AttrName, record.Name)
	return domain.Product{
		ID:          strings.TrimSpace(record.ID),
		Type:        domain.CategoryWatches,
		Brand:       strings.TrimSpace(record.Brand),
		ProductName: CoalesceName("", "", record.Name),
		Images:      normalizeImages(record.Images),
		Attributes:  attrs,
	}
}

func normalizeImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, image := range images {
		if value := strings.TrimSpace(image); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func attributes(key, value string) map[string]string {
	return withAttribute(nil, key, value)
}

func withAttribute(attrs map[string]string, key, value string) map[string]string {
	value = strings.TrimSpace(value)
	if value == "" {
		return attrs
	}
	if attrs == nil {
		attrs = make(map[string]string, 2)
	}
	attrs[key] = value
	return attrs
}
