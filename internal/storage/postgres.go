package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	id             BIGSERIAL PRIMARY KEY,
	rpc            TEXT             NOT NULL,
	url            TEXT             NOT NULL,
	title          TEXT             NOT NULL,
	brand          TEXT,
	country        TEXT,
	section        TEXT[]           NOT NULL,
	marketing_tags TEXT[]           NOT NULL,
	price_current  DOUBLE PRECISION NOT NULL,
	price_original DOUBLE PRECISION NOT NULL,
	sale_tag       TEXT             NOT NULL DEFAULT '',
	in_stock       BOOLEAN          NOT NULL,
	scraped_at     DOUBLE PRECISION NOT NULL,
	record         JSONB            NOT NULL
)`

var recordColumns = []string{
	"rpc", "url", "title", "brand", "country", "section", "marketing_tags",
	"price_current", "price_original", "sale_tag", "in_stock", "scraped_at", "record",
}

// maxParams is the Postgres limit on bind parameters in one statement.
const maxParams = 65535

// rowsPerInsert keeps a single INSERT under maxParams.
var rowsPerInsert = maxParams / len(recordColumns)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStorage writes product records to a Postgres table. The queryable
// columns are split out and the full record is kept as jsonb.
type PostgresStorage struct {
	db     *sql.DB
	table  string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewPostgresStorage connects to dsn and creates table if it does not exist.
func NewPostgresStorage(dsn, table string, logger *slog.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("open: %w", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("ping: %w", err)}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(createTableSQL, pq.QuoteIdentifier(table))); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("create table: %w", err)}
	}

	return &PostgresStorage{
		db:     db,
		table:  table,
		logger: logger.With("component", "postgres_storage"),
	}, nil
}

func (s *PostgresStorage) Name() string { return "postgres" }

func (s *PostgresStorage) Store(items []*types.Item) error {
	records := make([]*catalog.ProductRecord, 0, len(items))
	for _, item := range items {
		rec, ok := catalog.RecordFromItem(item)
		if !ok {
			s.logger.Warn("item is not a product record, skipped", "url", item.URL)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("begin: %w", err)}
	}
	for _, chunk := range batches(records, rowsPerInsert) {
		query, args, err := buildInsert(s.table, chunk)
		if err == nil {
			_, err = tx.ExecContext(ctx, query, args...)
		}
		if err != nil {
			tx.Rollback()
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert: %w", err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("commit: %w", err)}
	}

	s.count += len(records)
	s.logger.Debug("records stored in postgres", "count", len(records), "total", s.count)
	return nil
}

func (s *PostgresStorage) Close() error {
	s.logger.Info("postgres storage closing", "total_items", s.count)
	return s.db.Close()
}

// batches splits records into runs of at most size.
func batches(records []*catalog.ProductRecord, size int) [][]*catalog.ProductRecord {
	var out [][]*catalog.ProductRecord
	for len(records) > size {
		out = append(out, records[:size])
		records = records[size:]
	}
	if len(records) > 0 {
		out = append(out, records)
	}
	return out
}

// buildInsert renders one multi-row INSERT for the batch. A nil brand or
// country is bound as NULL.
func buildInsert(table string, records []*catalog.ProductRecord) (string, []any, error) {
	b := psql.Insert(pq.QuoteIdentifier(table)).Columns(recordColumns...)
	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return "", nil, fmt.Errorf("encode record %s: %w", rec.RPC, err)
		}
		b = b.Values(
			rec.RPC,
			rec.URL,
			rec.Title,
			rec.Brand,
			rec.Metadata.Country,
			pq.StringArray(nonNil(rec.Section)),
			pq.StringArray(nonNil(rec.MarketingTags)),
			rec.PriceData.Current,
			rec.PriceData.Original,
			rec.PriceData.SaleTag,
			rec.Stock.InStock,
			rec.Timestamp,
			string(doc),
		)
	}
	return b.ToSql()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
