package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"luxestore/searchservice/internal/domain"
)

const (
	DefaultEndpoint  = "http://localhost:8090/query"
	defaultUserAgent = "luxestore-search/1.0"
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 32 * 1024 * 1024
)

// AllProductsQuery requests every collection in a single round trip.
const AllProductsQuery = `query GetAllProducts {
  sneakers { id brand productName images productLink }
  apparel { id brand productName images productLink }
  accessories { id brand productName images productLink }
  perfumes { id brand title images url }
  watches { id brand name images link }
}`

var ErrMissingData = errors.New("graphql response has no data")

type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql upstream HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql upstream HTTP %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

type requestBody struct {
	Query string `json:"query"`
}

type responseEnvelope struct {
	Data   *allProductsData `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

func (c *Client) Name() string {
	return "graphql"
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchAll issues one POST for all five collections and returns them
// normalized, in collection order.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Product, error) {
	body, err := json.Marshal(requestBody{Query: AllProductsQuery})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(preview))}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}
	return parseResponse(payload)
}

func parseResponse(payload []byte) ([]domain.Product, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if envelope.Data == nil {
		if len(envelope.Errors) > 0 && strings.TrimSpace(envelope.Errors[0].Message) != "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingData, strings.TrimSpace(envelope.Errors[0].Message))
		}
		return nil, ErrMissingData
	}
	return envelope.Data.products(), nil
}
