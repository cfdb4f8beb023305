package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/metrics"
)

// FetchAllProducts forces an upstream refresh and never fails: when the
// upstream is down it returns the best fallback, which is the previous
// catalog, a stored snapshot, the placeholder set, or an empty list.
func (s *Service) FetchAllProducts(ctx context.Context) []domain.Product {
	catalog, err := s.refresh(ctx, true)
	if err != nil {
		return []domain.Product{}
	}
	return catalog.Products()
}

func (s *Service) fetchUpstream(ctx context.Context) ([]domain.Product, error) {
	if s.source == nil {
		return nil, errors.New("no catalog source configured")
	}
	var products []domain.Product
	err := RetryWithBackoff(ctx, s.retry, func(attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		start := time.Now()
		items, err := s.source.FetchAll(attemptCtx)
		latency := time.Since(start)
		s.recordUpstreamResult(err, latency, s.now())
		if err != nil {
			s.logger.Warn("catalog fetch attempt failed",
				slog.String("source", s.source.Name()),
				slog.Int("attempt", attempt),
				slog.Int("maxAttempts", s.retry.MaxAttempts),
				slog.Int64("latencyMs", latency.Milliseconds()),
				slog.String("error", err.Error()),
			)
			return err
		}
		products = items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch catalog from %s: %w", s.source.Name(), err)
	}
	return products, nil
}

// loadFreshStored returns the first stored snapshot that is still within TTL
// and newer than current.
func (s *Service) loadFreshStored(ctx context.Context, current *Catalog) *Catalog {
	now := s.now()
	for _, store := range s.stores {
		stored, ok := s.loadStore(ctx, store)
		if !ok || len(stored.Products) == 0 {
			continue
		}
		if now.Sub(stored.FetchedAt) > s.ttl {
			continue
		}
		if current != nil && !stored.FetchedAt.After(current.fetchedAt) {
			continue
		}
		return newCatalog(stored.Products, stored.FetchedAt, domain.CatalogOriginSnapshot)
	}
	return nil
}

// loadAnyStored returns the first non-empty stored snapshot regardless of age.
func (s *Service) loadAnyStored(ctx context.Context) *Catalog {
	for _, store := range s.stores {
		stored, ok := s.loadStore(ctx, store)
		if !ok || len(stored.Products) == 0 {
			continue
		}
		return newCatalog(stored.Products, stored.FetchedAt, domain.CatalogOriginSnapshot)
	}
	return nil
}

func (s *Service) loadStore(ctx context.Context, store SnapshotStore) (StoredCatalog, bool) {
	loadCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, ok, err := store.Load(loadCtx)
	if err != nil {
		metrics.SnapshotStoreErrorsTotal.WithLabelValues(store.Name(), "load").Inc()
		s.logger.Warn("snapshot store load failed",
			slog.String("store", store.Name()),
			slog.String("error", err.Error()),
		)
		return StoredCatalog{}, false
	}
	return stored, ok
}

// saveToStores writes to every store in parallel. Failures are logged only.
func (s *Service) saveToStores(ctx context.Context, catalog StoredCatalog) {
	if len(s.stores) == 0 {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var group errgroup.Group
	for _, store := range s.stores {
		group.Go(func() error {
			if err := store.Save(saveCtx, catalog); err != nil {
				metrics.SnapshotStoreErrorsTotal.WithLabelValues(store.Name(), "save").Inc()
				s.logger.Warn("snapshot store save failed",
					slog.String("store", store.Name()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = group.Wait()
}
