package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	// EventTypeProductScraped is published once per normalized product record.
	EventTypeProductScraped EventType = "PRODUCT_SCRAPED"
)

const source = "grocery-scraper"

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type ProductScrapedEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
	RunID     string               `json:"run_id"`
	Source    string               `json:"source"`
	Product   models.ProductRecord `json:"product"`
}

// Publisher appends scraped products to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	for _, rec := range records {
		if err := p.PublishProductScraped(ctx, runID, rec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) PublishProductScraped(ctx context.Context, runID string, rec models.ProductRecord) error {
	event := ProductScrapedEvent{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeProductScraped),
		Timestamp: p.now(),
		RunID:     runID,
		Source:    source,
		Product:   rec,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"event_id":     event.EventID,
			"event_type":   event.EventType,
			"run_id":       runID,
			"aggregate_id": rec.ProductID,
			"timestamp":    fmt.Sprintf("%d", event.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"event_id", event.EventID,
		"stream_id", id,
		"product_id", rec.ProductID)
	return nil
}
