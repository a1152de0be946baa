package jobs

import (
	"context"
	"sync"

	"github.com/maltedev/grocery-scraper/internal/models"
)

// Collector is a pipeline sink that keeps each run's records in memory for
// the API.
type Collector struct {
	mu      sync.RWMutex
	records map[string][]models.ProductRecord
}

func NewCollector() *Collector {
	return &Collector{records: make(map[string][]models.ProductRecord)}
}

func (c *Collector) Name() string { return "memory" }

func (c *Collector) Write(_ context.Context, runID string, records []models.ProductRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[runID] = append(c.records[runID], records...)
	return nil
}

func (c *Collector) Records(runID string) []models.ProductRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]models.ProductRecord, 0, len(c.records[runID])), c.records[runID]...)
}
