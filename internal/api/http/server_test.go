package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/search"
)

type fakeCatalogService struct {
	mu            sync.Mutex
	lastRequest   domain.SearchRequest
	searchCalls   int
	searchErr     error
	countsErr     error
	lastCountsQ   string
	invalidations int
	panicOnSearch bool
	ready         bool
}

func (f *fakeCatalogService) Search(_ context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnSearch {
		panic("boom")
	}
	f.searchCalls++
	f.lastRequest = request
	if f.searchErr != nil {
		return domain.SearchResponse{}, f.searchErr
	}
	return domain.SearchResponse{
		Products:       []domain.Product{{ID: "1", Type: domain.CategorySneakers, Brand: "Nike", ProductName: "Air Jordan 1", Images: []string{}}},
		Total:          1,
		Page:           request.Page,
		TotalPages:     1,
		CategoryCounts: domain.CategoryCounts{Sneakers: 1, Watches: 1},
	}, nil
}

func (f *fakeCatalogService) Counts(_ context.Context, query string) (domain.CategoryCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCountsQ = query
	if f.countsErr != nil {
		return domain.CategoryCounts{}, f.countsErr
	}
	return domain.CategoryCounts{Sneakers: 3, Apparel: 2, Accessories: 1, Perfumes: 4, Watches: 5}, nil
}

func (f *fakeCatalogService) Product(_ context.Context, category domain.Category, id string) (domain.Product, error) {
	if category == domain.CategoryWatches && id == "2" {
		return domain.Product{ID: "2", Type: domain.CategoryWatches, Brand: "Rolex", ProductName: "Submariner", Images: []string{}}, nil
	}
	if id == "explode" {
		return domain.Product{}, errors.New("database on fire")
	}
	return domain.Product{}, search.ErrProductNotFound
}

func (f *fakeCatalogService) Status(context.Context) domain.CatalogStatus {
	return domain.CatalogStatus{Total: 2, Origin: domain.CatalogOriginUpstream, Fresh: true}
}

func (f *fakeCatalogService) Ready() bool {
	return f.ready
}

func (f *fakeCatalogService) Invalidate() {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
}

func newTestServer(t *testing.T, svc *fakeCatalogService) (*Server, http.Handler) {
	t.Helper()
	server := NewServer(svc, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(server.Close)
	return server, server.Handler()
}

func doRequest(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func TestSearchHandlerPassesParams(t *testing.T) {
	svc := &fakeCatalogService{}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search?q=jordan&category=Sneakers&page=2&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastRequest.Query != "jordan" || svc.lastRequest.Category != domain.CategorySneakers ||
		svc.lastRequest.Page != 2 || svc.lastRequest.Limit != 10 {
		t.Fatalf("unexpected request %+v", svc.lastRequest)
	}

	var body map[string]json.RawMessage
	decodeBody(t, rec, &body)
	for _, key := range []string{"products", "total", "page", "totalPages", "categoryCounts"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("response missing %q: %s", key, rec.Body.String())
		}
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestSearchHandlerDefaults(t *testing.T) {
	svc := &fakeCatalogService{}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastRequest.Page != 1 || svc.lastRequest.Limit != 50 || svc.lastRequest.Query != "" {
		t.Fatalf("unexpected defaults %+v", svc.lastRequest)
	}
}

func TestSearchHandlerRejectsInvalidParams(t *testing.T) {
	cases := []string{
		"/api/search?page=0",
		"/api/search?page=-1",
		"/api/search?page=abc",
		"/api/search?limit=0",
		"/api/search?limit=ten",
		"/api/search?category=shoes",
		"/api/search?q=" + strings.Repeat("a", 201),
	}
	for _, target := range cases {
		svc := &fakeCatalogService{}
		_, handler := newTestServer(t, svc)
		rec := doRequest(handler, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		var body map[string]string
		decodeBody(t, rec, &body)
		if body["error"] == "" || body["message"] == "" {
			t.Fatalf("%s: expected {error,message} envelope, got %v", target, body)
		}
		if svc.searchCalls != 0 {
			t.Fatalf("%s: service must not be called", target)
		}
	}
}

func TestSearchHandlerAcceptsPageFarBeyondEnd(t *testing.T) {
	svc := &fakeCatalogService{}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search?q=nike&page=100001")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastRequest.Page != 100001 {
		t.Fatalf("page not passed through, got %d", svc.lastRequest.Page)
	}
}

func TestSearchHandlerInternalErrorEnvelope(t *testing.T) {
	svc := &fakeCatalogService{searchErr: errors.New("secret upstream detail")}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search?q=x")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != errInternal {
		t.Fatalf("unexpected error label %q", body["error"])
	}
	if strings.Contains(body["message"], "secret") {
		t.Fatalf("500 message must be generic, got %q", body["message"])
	}
}

func TestRecoveryMiddlewareReturnsJSON(t *testing.T) {
	svc := &fakeCatalogService{panicOnSearch: true}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search?q=x")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != errInternal {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCountsHandler(t *testing.T) {
	svc := &fakeCatalogService{}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search/counts?q=nike")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var counts domain.CategoryCounts
	decodeBody(t, rec, &counts)
	if counts.Total() != 15 || svc.lastCountsQ != "nike" {
		t.Fatalf("unexpected counts %+v (q=%q)", counts, svc.lastCountsQ)
	}
}

func TestCountsHandlerDegradesToZero(t *testing.T) {
	svc := &fakeCatalogService{countsErr: search.ErrCatalogUnavailable}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/search/counts")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	decodeBody(t, rec, &body)
	for _, category := range domain.AllCategories() {
		value, ok := body[string(category)]
		if !ok || value != 0 {
			t.Fatalf("expected zero for %s, got %v", category, body)
		}
	}
}

func TestProductHandler(t *testing.T) {
	_, handler := newTestServer(t, &fakeCatalogService{})

	rec := doRequest(handler, http.MethodGet, "/api/products/watches/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ok struct {
		Success bool           `json:"success"`
		Data    domain.Product `json:"data"`
	}
	decodeBody(t, rec, &ok)
	if !ok.Success || ok.Data.ProductName != "Submariner" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	for target, status := range map[string]int{
		"/api/products/watches/404":     http.StatusNotFound,
		"/api/products/cars/1":          http.StatusBadRequest,
		"/api/products/sneakers/explode": http.StatusInternalServerError,
	} {
		rec := doRequest(handler, http.MethodGet, target)
		if rec.Code != status {
			t.Fatalf("%s: expected %d, got %d", target, status, rec.Code)
		}
		var body map[string]any
		decodeBody(t, rec, &body)
		if body["success"] != false || body["error"] == "" {
			t.Fatalf("%s: unexpected body %v", target, body)
		}
	}
}

func TestCatalogStatusAndInvalidate(t *testing.T) {
	svc := &fakeCatalogService{}
	_, handler := newTestServer(t, svc)

	rec := doRequest(handler, http.MethodGet, "/api/catalog/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status domain.CatalogStatus
	decodeBody(t, rec, &status)
	if status.Total != 2 || status.Origin != domain.CatalogOriginUpstream {
		t.Fatalf("unexpected status %+v", status)
	}

	rec = doRequest(handler, http.MethodPost, "/api/catalog/invalidate")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if svc.invalidations != 1 {
		t.Fatalf("expected 1 invalidation, got %d", svc.invalidations)
	}

	rec = doRequest(handler, http.MethodGet, "/api/catalog/invalidate")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	_, handler := newTestServer(t, &fakeCatalogService{})

	rec := doRequest(handler, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"catalogReady":false`) {
		t.Fatalf("expected catalogReady=false, got %s", rec.Body.String())
	}
	rec = doRequest(handler, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthReportsCatalogReady(t *testing.T) {
	_, handler := newTestServer(t, &fakeCatalogService{ready: true})

	rec := doRequest(handler, http.MethodGet, "/health")
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["catalogReady"] != true {
		t.Fatalf("expected catalogReady=true, got %v", body)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	_, handler := newTestServer(t, &fakeCatalogService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/health":                 "/health",
		"/api/search":             "/api/search",
		"/api/search/counts":      "/api/search/counts",
		"/api/products/watches/9": "/api/products/{category}/{id}",
		"/api/catalog/status":     "/api/catalog/status",
		"/api/catalog/random":     "/other",
		"/favicon.ico":            "/other",
	}
	for path, want := range cases {
		if got := normalizeRoute(path); got != want {
			t.Fatalf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCatalogEventsWebSocket(t *testing.T) {
	server, handler := newTestServer(t, &fakeCatalogService{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/catalog/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.wsHub.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	server.CatalogRefreshed(domain.CatalogStatus{Total: 42, Origin: domain.CatalogOriginUpstream})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var msg struct {
		Type string               `json:"type"`
		Data domain.CatalogStatus `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v (raw: %s)", err, data)
	}
	if msg.Type != catalogRefreshedEvent || msg.Data.Total != 42 {
		t.Fatalf("unexpected message %+v", msg)
	}
}
