package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/search"
)

const (
	catalogSnapshotID = "catalog"
	undefinedTable    = "42P01"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id         TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

const loadSQL = `
	SELECT payload, fetched_at
	FROM catalog_snapshots
	WHERE id = $1;
`

const saveSQL = `
	INSERT INTO catalog_snapshots (id, payload, fetched_at, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (id) DO UPDATE
	SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at, updated_at = NOW();
`

// CatalogRepository stores the latest catalog snapshot as a JSONB row.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Open opens a lib/pq connection pool and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: ensure catalog schema: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Name() string {
	return "postgres"
}

func (r *CatalogRepository) Load(ctx context.Context) (search.StoredCatalog, bool, error) {
	var (
		payload   []byte
		fetchedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, loadSQL, catalogSnapshotID).Scan(&payload, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return search.StoredCatalog{}, false, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
			return search.StoredCatalog{}, false, nil
		}
		return search.StoredCatalog{}, false, fmt.Errorf("postgres: load catalog snapshot: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(payload, &products); err != nil {
		return search.StoredCatalog{}, false, fmt.Errorf("postgres: decode catalog snapshot: %w", err)
	}
	return search.StoredCatalog{Products: products, FetchedAt: fetchedAt.UTC()}, true, nil
}

func (r *CatalogRepository) Save(ctx context.Context, catalog search.StoredCatalog) error {
	payload, err := json.Marshal(catalog.Products)
	if err != nil {
		return fmt.Errorf("postgres: encode catalog snapshot: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, saveSQL, catalogSnapshotID, payload, catalog.FetchedAt.UTC()); err != nil {
		return fmt.Errorf("postgres: save catalog snapshot: %w", err)
	}
	return nil
}
