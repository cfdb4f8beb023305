package search

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"luxestore/searchservice/internal/domain"
)

var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidCategory    = errors.New("invalid category")
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultRefreshInterval = time.Minute
	defaultFetchTimeout    = 30 * time.Second
	defaultStoreTimeout    = 3 * time.Second
)

// Source fetches the full normalized catalog from upstream.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]domain.Product, error)
}

// StoredCatalog is the persisted form of a catalog snapshot.
type StoredCatalog struct {
	Products  []domain.Product `json:"products"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// SnapshotStore persists catalog snapshots outside the process so other
// instances and cold starts can reuse them.
type SnapshotStore interface {
	Name() string
	Load(ctx context.Context) (StoredCatalog, bool, error)
	Save(ctx context.Context, catalog StoredCatalog) error
}

type Service struct {
	source             Source
	stores             []SnapshotStore
	logger             *slog.Logger
	ttl                time.Duration
	refreshInterval    time.Duration
	fetchTimeout       time.Duration
	storeTimeout       time.Duration
	retry              RetryConfig
	placeholderEnabled bool
	now                func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	current      atomic.Pointer[Catalog]
	flight       singleflight.Group
	refresherRun atomic.Bool

	listenersMu sync.RWMutex
	listeners   []func(domain.CatalogStatus)

	healthMu sync.Mutex
	health   upstreamHealth
}

type ServiceOption func(*Service)

func WithSnapshotStores(stores ...SnapshotStore) ServiceOption {
	return func(s *Service) {
		for _, store := range stores {
			if store != nil {
				s.stores = append(s.stores, store)
			}
		}
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRefreshInterval sets the background refresher period. Zero disables it.
func WithRefreshInterval(interval time.Duration) ServiceOption {
	return func(s *Service) {
		if interval >= 0 {
			s.refreshInterval = interval
		}
	}
}

func WithFetchTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

func WithStoreTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.storeTimeout = timeout
		}
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

func WithPlaceholder(enabled bool) ServiceOption {
	return func(s *Service) {
		s.placeholderEnabled = enabled
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandSource makes discover-mode shuffles reproducible.
func WithRandSource(src rand.Source) ServiceOption {
	return func(s *Service) {
		if src != nil {
			s.rng = rand.New(src)
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(source Source, opts ...ServiceOption) *Service {
	svc := &Service{
		source:             source,
		logger:             slog.Default(),
		ttl:                defaultCacheTTL,
		refreshInterval:    defaultRefreshInterval,
		fetchTimeout:       defaultFetchTimeout,
		storeTimeout:       defaultStoreTimeout,
		retry:              DefaultRetryConfig(),
		placeholderEnabled: true,
		now:                time.Now,
		rng:                rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// StartBackground launches the refresher loop once. It stops with ctx.
func (s *Service) StartBackground(ctx context.Context) {
	if s.refreshInterval <= 0 {
		return
	}
	if s.refresherRun.CompareAndSwap(false, true) {
		go s.runRefresher(ctx)
	}
}

// Subscribe registers fn to be called after every catalog install.
func (s *Service) Subscribe(fn func(domain.CatalogStatus)) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *Service) notify(status domain.CatalogStatus) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(status)
	}
}

func (s *Service) shuffle(products []domain.Product) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(products), func(i, j int) {
		products[i], products[j] = products[j], products[i]
	})
}
