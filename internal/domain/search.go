package domain

import "time"

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

type SearchRequest struct {
	Query    string
	Category Category
	Page     int
	Limit    int
}

type SearchResponse struct {
	Products       []Product      `json:"products"`
	Total          int            `json:"total"`
	Page           int            `json:"page"`
	TotalPages     int            `json:"totalPages"`
	CategoryCounts CategoryCounts `json:"categoryCounts"`
}

type CatalogOrigin string

const (
	CatalogOriginUpstream    CatalogOrigin = "upstream"
	CatalogOriginSnapshot    CatalogOrigin = "snapshot"
	CatalogOriginPlaceholder CatalogOrigin = "placeholder"
	CatalogOriginNone        CatalogOrigin = "none"
)

type CatalogStatus struct {
	Total          int            `json:"total"`
	FetchedAt      *time.Time     `json:"fetchedAt,omitempty"`
	AgeMS          int64          `json:"ageMs"`
	Fresh          bool           `json:"fresh"`
	Origin         CatalogOrigin  `json:"origin"`
	IndexTokens    int            `json:"indexTokens"`
	CategoryCounts CategoryCounts `json:"categoryCounts"`
	Upstream       UpstreamHealth `json:"upstream"`
}

type UpstreamHealth struct {
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}
