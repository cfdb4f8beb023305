package search

import (
	"context"
	"log/slog"
	"time"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/metrics"
)

const refreshFlightKey = "catalog"

// Catalog is an immutable snapshot: the product list and the index built
// from it are always published together.
type Catalog struct {
	products    []domain.Product
	index       Index
	byKey       map[string]int
	counts      domain.CategoryCounts
	fetchedAt   time.Time
	origin      domain.CatalogOrigin
	invalidated bool
}

func newCatalog(products []domain.Product, fetchedAt time.Time, origin domain.CatalogOrigin) *Catalog {
	items := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if _, ok := domain.ParseCategory(string(product.Type)); !ok {
			continue
		}
		if product.Images == nil {
			product.Images = []string{}
		}
		items = append(items, product)
	}
	byKey := make(map[string]int, len(items))
	for position, product := range items {
		if _, exists := byKey[product.Key()]; !exists {
			byKey[product.Key()] = position
		}
	}
	return &Catalog{
		products:  items,
		index:     BuildIndex(items),
		byKey:     byKey,
		counts:    CountByCategory(items),
		fetchedAt: fetchedAt,
		origin:    origin,
	}
}

// Products returns a copy of the catalog in cache order.
func (c *Catalog) Products() []domain.Product {
	products := make([]domain.Product, len(c.products))
	copy(products, c.products)
	return products
}

func (c *Catalog) Len() int {
	return len(c.products)
}

func (c *Catalog) FetchedAt() time.Time {
	return c.fetchedAt
}

func (c *Catalog) Origin() domain.CatalogOrigin {
	return c.origin
}

func (c *Catalog) Counts() domain.CategoryCounts {
	return c.counts
}

func (s *Service) isFresh(catalog *Catalog, now time.Time) bool {
	if catalog == nil || catalog.invalidated {
		return false
	}
	return now.Sub(catalog.fetchedAt) <= s.ttl
}

// Init loads the first catalog. It fails only when nothing at all can be
// served.
func (s *Service) Init(ctx context.Context) error {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("catalog initialized",
		slog.Int("products", catalog.Len()),
		slog.String("origin", string(catalog.Origin())),
	)
	return nil
}

// Snapshot returns the current catalog, refreshing it first when it has
// expired. A failed refresh falls back to the stale catalog.
func (s *Service) Snapshot(ctx context.Context) (*Catalog, error) {
	current := s.current.Load()
	if s.isFresh(current, s.now()) {
		metrics.CacheHitsTotal.Inc()
		return current, nil
	}
	metrics.CacheMissesTotal.Inc()
	return s.refresh(ctx, false)
}

// Invalidate expires the current catalog while keeping it servable as stale.
func (s *Service) Invalidate() {
	for {
		current := s.current.Load()
		if current == nil || current.invalidated {
			return
		}
		expired := *current
		expired.invalidated = true
		if s.current.CompareAndSwap(current, &expired) {
			s.logger.Info("catalog invalidated", slog.Int("products", current.Len()))
			return
		}
	}
}

// refresh coalesces concurrent callers onto one refresh. The shared work is
// detached from any single caller's cancellation.
func (s *Service) refresh(ctx context.Context, force bool) (*Catalog, error) {
	ch := s.flight.DoChan(refreshFlightKey, func() (any, error) {
		return s.refreshCatalog(context.WithoutCancel(ctx), force)
	})
	select {
	case <-ctx.Done():
		if current := s.current.Load(); current != nil {
			return current, nil
		}
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*Catalog), nil
	}
}

func (s *Service) refreshCatalog(ctx context.Context, force bool) (*Catalog, error) {
	start := time.Now()
	current := s.current.Load()

	if !force {
		// Another flight may have finished between the caller's check and now.
		if s.isFresh(current, s.now()) {
			return current, nil
		}
		if stored := s.loadFreshStored(ctx, current); stored != nil {
			s.install(stored)
			metrics.RefreshTotal.WithLabelValues(string(domain.CatalogOriginSnapshot)).Inc()
			s.logger.Info("catalog adopted from snapshot store",
				slog.Int("products", stored.Len()),
				slog.Time("fetchedAt", stored.FetchedAt()),
				slog.Int64("elapsedMs", time.Since(start).Milliseconds()),
			)
			return stored, nil
		}
	}

	products, err := s.fetchUpstream(ctx)
	if err == nil {
		fetchedAt := s.now()
		catalog := newCatalog(products, fetchedAt, domain.CatalogOriginUpstream)
		s.install(catalog)
		s.saveToStores(ctx, StoredCatalog{Products: catalog.products, FetchedAt: fetchedAt})
		metrics.RefreshTotal.WithLabelValues(string(domain.CatalogOriginUpstream)).Inc()
		s.logger.Info("catalog refreshed",
			slog.Int("products", catalog.Len()),
			slog.Int("indexTokens", len(catalog.index)),
			slog.Int64("elapsedMs", time.Since(start).Milliseconds()),
		)
		return catalog, nil
	}

	if current != nil {
		metrics.RefreshTotal.WithLabelValues("stale").Inc()
		s.logger.Warn("catalog refresh failed, serving stale catalog",
			slog.String("error", err.Error()),
			slog.Int("products", current.Len()),
			slog.Time("fetchedAt", current.FetchedAt()),
		)
		return current, nil
	}

	if stored := s.loadAnyStored(ctx); stored != nil {
		s.install(stored)
		metrics.RefreshTotal.WithLabelValues(string(domain.CatalogOriginSnapshot)).Inc()
		s.logger.Warn("catalog refresh failed, using stored snapshot",
			slog.String("error", err.Error()),
			slog.Int("products", stored.Len()),
			slog.Time("fetchedAt", stored.FetchedAt()),
		)
		return stored, nil
	}

	if s.placeholderEnabled {
		metrics.RefreshTotal.WithLabelValues(string(domain.CatalogOriginPlaceholder)).Inc()
		s.logger.Warn("catalog refresh failed, serving placeholder catalog",
			slog.String("error", err.Error()),
		)
		return newCatalog(placeholderProducts(), s.now(), domain.CatalogOriginPlaceholder), nil
	}

	metrics.RefreshTotal.WithLabelValues("unavailable").Inc()
	s.logger.Error("catalog unavailable", slog.String("error", err.Error()))
	return nil, ErrCatalogUnavailable
}

func (s *Service) install(catalog *Catalog) {
	s.current.Store(catalog)

	for _, category := range domain.AllCategories() {
		metrics.ProductsTotal.WithLabelValues(string(category)).Set(float64(catalog.counts.Get(category)))
	}
	metrics.IndexTokens.Set(float64(len(catalog.index)))

	s.notify(s.statusOf(catalog, s.now()))
}

func (s *Service) runRefresher(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.isFresh(s.current.Load(), s.now()) {
				continue
			}
			if _, err := s.refresh(ctx, false); err != nil && ctx.Err() == nil {
				s.logger.Warn("background catalog refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
