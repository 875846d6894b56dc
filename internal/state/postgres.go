package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"coinsentry/internal/config"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("state: pool not configured")

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS seen_items (
        id         TEXT PRIMARY KEY,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS price_records (
        asset_id        TEXT PRIMARY KEY,
        last_price      TEXT NOT NULL,
        last_check_time TIMESTAMPTZ NOT NULL
    );
    CREATE TABLE IF NOT EXISTS price_history (
        id          BIGSERIAL PRIMARY KEY,
        asset_id    TEXT NOT NULL,
        price       TEXT NOT NULL,
        observed_at TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS price_history_asset_ts
        ON price_history (asset_id, observed_at);`

	listSeenSQL = `SELECT id FROM seen_items;`

	insertSeenSQL = `INSERT INTO seen_items (id) VALUES ($1)
    ON CONFLICT (id) DO NOTHING;`

	listPriceRecordsSQL = `SELECT asset_id, last_price, last_check_time FROM price_records;`

	upsertPriceRecordSQL = `INSERT INTO price_records (
        asset_id,
        last_price,
        last_check_time
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (asset_id) DO UPDATE
    SET last_price      = EXCLUDED.last_price,
        last_check_time = EXCLUDED.last_check_time;`

	insertHistorySQL = `INSERT INTO price_history (asset_id, price, observed_at)
    VALUES ($1,$2,$3);`

	listHistorySQL = `SELECT asset_id, price, observed_at
    FROM price_history
    WHERE asset_id = $1
      AND observed_at >= $2
      AND observed_at < $3
    ORDER BY observed_at;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	store := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Load reads the seen set and price records.
func (s *PostgresStore) Load(ctx context.Context) (SeenSet, map[string]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, nil, err
	}

	seen := NewSeenSet()
	rows, queryErr := pool.Query(ctx, listSeenSQL)
	if queryErr != nil {
		return nil, nil, fmt.Errorf("list seen items: %w", queryErr)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		seen.Add(id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, nil, rows.Err()
	}

	prices := make(map[string]PriceRecord)
	rows, queryErr = pool.Query(ctx, listPriceRecordsSQL)
	if queryErr != nil {
		return nil, nil, fmt.Errorf("list price records: %w", queryErr)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			asset     string
			priceStr  string
			lastCheck time.Time
		)
		if err := rows.Scan(&asset, &priceStr, &lastCheck); err != nil {
			return nil, nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, nil, fmt.Errorf("%w: parse price for %q: %v", ErrCorrupt, asset, convErr)
		}
		prices[asset] = PriceRecord{LastPrice: price, LastCheck: lastCheck}
	}
	if rows.Err() != nil {
		return nil, nil, rows.Err()
	}

	return seen, prices, nil
}

// Save upserts price records and inserts new seen ids in one transaction.
func (s *PostgresStore) Save(ctx context.Context, seen SeenSet, prices map[string]PriceRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range seen.Sorted() {
		batch.Queue(insertSeenSQL, id)
	}
	for asset, rec := range prices {
		batch.Queue(upsertPriceRecordSQL, asset, rec.LastPrice.String(), rec.LastCheck)
	}

	results := tx.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// AppendHistory inserts observation points.
func (s *PostgresStore) AppendHistory(ctx context.Context, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, point := range points {
		batch.Queue(insertHistorySQL, point.AssetID, point.Price.String(), point.ObservedAt)
	}
	results := pool.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns points for assetID observed in [from, to).
func (s *PostgresStore) ListHistory(ctx context.Context, assetID string, from, to time.Time) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listHistorySQL, assetID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list history: %w", queryErr)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var (
			point    PricePoint
			priceStr string
		)
		if err := rows.Scan(&point.AssetID, &priceStr, &point.ObservedAt); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("%w: parse history price: %v", ErrCorrupt, convErr)
		}
		point.Price = price
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

var _ Store = (*PostgresStore)(nil)
