package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/grocery-scraper/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS product_record (
	product_id     TEXT        NOT NULL,
	run_id         TEXT        NOT NULL,
	group_id       TEXT,
	name           TEXT,
	brand          TEXT,
	category_l0    TEXT,
	category_l1    TEXT,
	unit           TEXT,
	price          DOUBLE PRECISION,
	original_price DOUBLE PRECISION,
	inventory      BIGINT,
	product_url    TEXT        NOT NULL,
	image_urls     JSONB       NOT NULL DEFAULT '[]',
	nutrition_info JSONB       NOT NULL DEFAULT '{}',
	ingredients    TEXT,
	key_features   TEXT,
	scraped_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (product_id, run_id)
);
CREATE INDEX IF NOT EXISTS idx_product_record_category ON product_record (category_l0, category_l1);
`

const upsertRecord = `
	INSERT INTO product_record (
		product_id, run_id, group_id, name, brand, category_l0, category_l1, unit,
		price, original_price, inventory, product_url, image_urls, nutrition_info,
		ingredients, key_features
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (product_id, run_id) DO UPDATE SET
		group_id = EXCLUDED.group_id,
		name = EXCLUDED.name,
		brand = EXCLUDED.brand,
		category_l0 = EXCLUDED.category_l0,
		category_l1 = EXCLUDED.category_l1,
		unit = EXCLUDED.unit,
		price = EXCLUDED.price,
		original_price = EXCLUDED.original_price,
		inventory = EXCLUDED.inventory,
		product_url = EXCLUDED.product_url,
		image_urls = EXCLUDED.image_urls,
		nutrition_info = EXCLUDED.nutrition_info,
		ingredients = EXCLUDED.ingredients,
		key_features = EXCLUDED.key_features,
		scraped_at = CURRENT_TIMESTAMP`

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// RecordSink mirrors product records into Postgres, one row per product and
// run.
type RecordSink struct {
	conn   batchSender
	logger *slog.Logger
}

func NewRecordSink(db *DB, logger *slog.Logger) *RecordSink {
	return newRecordSink(db.pool, logger)
}

func newRecordSink(conn batchSender, logger *slog.Logger) *RecordSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordSink{conn: conn, logger: logger.With("component", "record_sink")}
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *RecordSink) Name() string { return "postgres" }

func (s *RecordSink) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := upsertBatch(runID, records)
	if err != nil {
		return err
	}

	results := s.conn.SendBatch(ctx, batch)
	defer results.Close()

	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", rec.ProductID, err)
		}
	}

	s.logger.Debug("records upserted", "run_id", runID, "count", len(records))
	return nil
}

func upsertBatch(runID string, records []models.ProductRecord) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, rec := range records {
		images, err := json.Marshal(rec.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal image urls: %w", err)
		}
		nutrition, err := json.Marshal(rec.NutritionInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal nutrition info: %w", err)
		}

		batch.Queue(upsertRecord,
			rec.ProductID, runID, rec.GroupID, rec.Name, rec.Brand,
			rec.CategoryL0, rec.CategoryL1, rec.Unit,
			rec.Price, rec.OriginalPrice, rec.Inventory, rec.ProductURL,
			string(images), string(nutrition), rec.Ingredients, rec.KeyFeatures,
		)
	}
	return batch, nil
}
