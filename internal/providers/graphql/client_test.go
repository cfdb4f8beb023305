package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"luxestore/searchservice/internal/domain"
)

const samplePayload = `{"data":{
	"sneakers":[{"id":"1","brand":"Nike","productName":"Air Jordan 1","images":["a.jpg"],"productLink":"/p/1"}],
	"apparel":[{"id":"1","brand":"Fear of God","productName":"Essentials Hoodie","images":null,"productLink":"/p/a1"}],
	"accessories":[],
	"perfumes":[{"id":"7","brand":"Creed","title":"Aventus","images":["p.jpg"],"url":"/perfume/7"}],
	"watches":[{"id":"2","brand":"Rolex","name":"Submariner","images":[],"link":"/w/2"}]
}}`

func TestFetchAllPostsQueryAndNormalizes(t *testing.T) {
	var gotQuery string
	var gotUA string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		var body requestBody
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		gotQuery = body.Query
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer upstream.Close()

	client := NewClient(Config{Endpoint: upstream.URL, UserAgent: "test-agent/1.0"})
	products, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if gotUA != "test-agent/1.0" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
	for _, collection := range []string{"sneakers", "apparel", "accessories", "perfumes", "watches"} {
		if !strings.Contains(gotQuery, collection) {
			t.Fatalf("query is missing collection %q", collection)
		}
	}
	if len(products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(products))
	}

	expected := []struct {
		id       string
		category domain.Category
		name     string
	}{
		{"1", domain.CategorySneakers, "Air Jordan 1"},
		{"1", domain.CategoryApparel, "Essentials Hoodie"},
		{"7", domain.CategoryPerfumes, "Aventus"},
		{"2", domain.CategoryWatches, "Submariner"},
	}
	for i, want := range expected {
		got := products[i]
		if got.ID != want.id || got.Type != want.category || got.ProductName != want.name {
			t.Fatalf("product %d: got %+v, want %+v", i, got, want)
		}
		if got.Images == nil {
			t.Fatalf("product %d: images must never be nil", i)
		}
	}
	if products[0].Attribute(domain.AttrProductLink) != "/p/1" {
		t.Fatalf("expected productLink attribute, got %+v", products[0].Attributes)
	}
	if products[2].Attribute(domain.AttrURL) != "/perfume/7" {
		t.Fatalf("expected url attribute, got %+v", products[2].Attributes)
	}
	if products[3].Attribute(domain.AttrLink) != "/w/2" {
		t.Fatalf("expected link attribute, got %+v", products[3].Attributes)
	}
}

func TestFetchAllReturnsUpstreamErrorOnNon2xx(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer upstream.Close()

	_, err := NewClient(Config{Endpoint: upstream.URL}).FetchAll(context.Background())
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusBadGateway || upstreamErr.Body != "boom" {
		t.Fatalf("unexpected upstream error: %+v", upstreamErr)
	}
}

func TestFetchAllMissingDataIsAnError(t *testing.T) {
	cases := map[string]string{
		"null data":     `{"data":null}`,
		"no data field": `{}`,
		"errors only":   `{"errors":[{"message":"unknown field"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			}))
			defer upstream.Close()

			_, err := NewClient(Config{Endpoint: upstream.URL}).FetchAll(context.Background())
			if !errors.Is(err, ErrMissingData) {
				t.Fatalf("expected ErrMissingData, got %v", err)
			}
		})
	}
}

func TestFetchAllHonoursContextCancellation(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(Config{Endpoint: upstream.URL}).FetchAll(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{})
	if client.Endpoint() != DefaultEndpoint {
		t.Fatalf("unexpected default endpoint %q", client.Endpoint())
	}
	if client.userAgent != defaultUserAgent {
		t.Fatalf("unexpected default user agent %q", client.userAgent)
	}
}
