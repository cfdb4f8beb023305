package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/search"
)

const (
	errBadRequest      = "Bad request"
	errInternal        = "Internal server error"
	errTooManyRequests = "Too many requests"

	catalogRefreshedEvent = "catalog.refreshed"
)

type CatalogService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	Counts(ctx context.Context, query string) (domain.CategoryCounts, error)
	Product(ctx context.Context, category domain.Category, id string) (domain.Product, error)
	Status(ctx context.Context) domain.CatalogStatus
	Ready() bool
	Invalidate()
}

type Server struct {
	catalog   CatalogService
	logger    *slog.Logger
	validate  *validator.Validate
	wsHub     *wsHub
	rateRPS   float64
	rateBurst int
}

type searchParams struct {
	Query    string `validate:"max=200"`
	Category string `validate:"omitempty,oneof=sneakers apparel accessories perfumes watches"`
	Page     int    `validate:"gte=1"`
	Limit    int    `validate:"gte=1"`
}

type productParams struct {
	Category string `validate:"required,oneof=sneakers apparel accessories perfumes watches"`
	ID       string `validate:"required,max=128"`
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(catalog CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog:   catalog,
		logger:    slog.Default(),
		validate:  validator.New(),
		rateRPS:   50,
		rateBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.wsHub = newWSHub(server.logger)
	go server.wsHub.run()
	return server
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/search/counts", s.handleSearchCounts)
		r.Get("/products/{category}/{id}", s.handleProduct)
		r.Get("/catalog/status", s.handleCatalogStatus)
		r.Post("/catalog/invalidate", s.handleCatalogInvalidate)
		r.Get("/catalog/events", s.handleCatalogEvents)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "method not allowed")
	})

	traced := otelhttp.NewHandler(requestIDMiddleware(loggingMiddleware(s.logger, r)), "catalog-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced)))
}

// CatalogRefreshed pushes status to every connected event client.
func (s *Server) CatalogRefreshed(status domain.CatalogStatus) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(catalogRefreshedEvent, status)
	}
}

// Close disconnects all WebSocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"catalogReady": s.catalog.Ready(),
		"timestamp":    time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := searchParams{
		Query:    strings.TrimSpace(query.Get("q")),
		Category: strings.ToLower(strings.TrimSpace(query.Get("category"))),
	}
	var err error
	if params.Page, err = parsePositiveInt(r, "page", 1); err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "page must be a positive integer")
		return
	}
	if params.Limit, err = parsePositiveInt(r, "limit", domain.DefaultSearchLimit); err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "limit must be a positive integer")
		return
	}
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, validationMessage(err))
		return
	}

	response, err := s.catalog.Search(r.Context(), domain.SearchRequest{
		Query:    params.Query,
		Category: domain.Category(params.Category),
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		if errors.Is(err, search.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, errBadRequest, err.Error())
			return
		}
		s.logger.Error("search request failed",
			slog.String("query", truncate(params.Query, 80)),
			slog.String("category", params.Category),
			slog.String("requestId", requestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to search products")
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSearchCounts degrades to all-zero counts rather than failing.
func (s *Server) handleSearchCounts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if err := s.validate.Var(query, "max=200"); err != nil {
		writeJSON(w, http.StatusOK, domain.CategoryCounts{})
		return
	}
	counts, err := s.catalog.Counts(r.Context(), query)
	if err != nil {
		s.logger.Warn("category counts failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, domain.CategoryCounts{})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	params := productParams{
		Category: strings.ToLower(strings.TrimSpace(chi.URLParam(r, "category"))),
		ID:       strings.TrimSpace(chi.URLParam(r, "id")),
	}
	if err := s.validate.Struct(params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": validationMessage(err)})
		return
	}

	product, err := s.catalog.Product(r.Context(), domain.Category(params.Category), params.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": product})
	case errors.Is(err, search.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Product not found"})
	case errors.Is(err, search.ErrInvalidCategory):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
	default:
		s.logger.Error("product lookup failed",
			slog.String("category", params.Category),
			slog.String("id", truncate(params.ID, 80)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to fetch product"})
	}
}

func (s *Server) handleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Status(r.Context()))
}

func (s *Server) handleCatalogInvalidate(w http.ResponseWriter, r *http.Request) {
	s.catalog.Invalidate()
	s.logger.Info("catalog invalidation requested",
		slog.String("clientIP", clientIP(r)),
		slog.String("requestId", requestIDFromContext(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

func (s *Server) handleCatalogEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 16),
	}
	if !s.wsHub.join(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request"
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	if field == "query" {
		field = "q"
	}
	switch fe.Tag() {
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "gte":
		return field + " must be at least " + fe.Param()
	case "required":
		return field + " is required"
	default:
		return field + " is invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, map[string]string{
		"error":   label,
		"message": message,
	})
}
