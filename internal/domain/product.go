package domain

import "strings"

type Category string

const (
	CategorySneakers    Category = "sneakers"
	CategoryApparel     Category = "apparel"
	CategoryAccessories Category = "accessories"
	CategoryPerfumes    Category = "perfumes"
	CategoryWatches     Category = "watches"
)

var allCategories = []Category{
	CategorySneakers,
	CategoryApparel,
	CategoryAccessories,
	CategoryPerfumes,
	CategoryWatches,
}

// AllCategories returns the catalog facets in display order.
func AllCategories() []Category {
	return append([]Category(nil), allCategories...)
}

func ParseCategory(raw string) (Category, bool) {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, category := range allCategories {
		if value == category {
			return category, true
		}
	}
	return "", false
}

// Attribute keys preserved from the upstream collections.
const (
	AttrProductLink = "productLink"
	AttrURL         = "url"
	AttrLink        = "link"
	AttrTitle       = "title"
	AttrName        = "name"
)

// Product is the uniform record every upstream collection is adapted into.
// ID is only unique within its Type.
type Product struct {
	ID          string            `json:"id"`
	Type        Category          `json:"type"`
	Brand       string            `json:"brand,omitempty"`
	ProductName string            `json:"productName"`
	Images      []string          `json:"images"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Key is the routing key: id is only unique per category.
func (p Product) Key() string {
	return ProductKey(p.Type, p.ID)
}

func ProductKey(category Category, id string) string {
	return string(category) + ":" + strings.TrimSpace(id)
}

func (p Product) Attribute(key string) string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[key]
}

type CategoryCounts struct {
	Sneakers    int `json:"sneakers"`
	Apparel     int `json:"apparel"`
	Accessories int `json:"accessories"`
	Perfumes    int `json:"perfumes"`
	Watches     int `json:"watches"`
}

// Add increments the bucket for category. Unknown categories are ignored.
func (c *CategoryCounts) Add(category Category) {
	switch category {
	case CategorySneakers:
		c.Sneakers++
	case CategoryApparel:
		c.Apparel++
	case CategoryAccessories:
		c.Accessories++
	case CategoryPerfumes:
		c.Perfumes++
	case CategoryWatches:
		c.Watches++
	}
}

func (c CategoryCounts) Get(category Category) int {
	switch category {
	case CategorySneakers:
		return c.Sneakers
	case CategoryApparel:
		return c.Apparel
	case CategoryAccessories:
		return c.Accessories
	case CategoryPerfumes:
		return c.Perfumes
	case CategoryWatches:
		return c.Watches
	default:
		return 0
	}
}

func (c CategoryCounts) Total() int {
	return c.Sneakers + c.Apparel + c.Accessories + c.Perfumes + c.Watches
}
