package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/pipeline"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunInProgress = errors.New("another run is in progress")
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Runner interface {
	Run(ctx context.Context, in pipeline.RunInput) (*pipeline.Summary, error)
}

// Request describes what a run should scrape. Empty fields fall back to the
// configured start URL and location.
type Request struct {
	StartURL   string            `json:"start_url,omitempty"`
	Location   string            `json:"location,omitempty"`
	Categories []models.Category `json:"categories,omitempty"`
	ProductIDs []string          `json:"product_ids,omitempty"`
}

type Run struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Request     Request           `json:"request"`
	Summary     *pipeline.Summary `json:"summary,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Manager runs one pipeline at a time in the background and keeps the
// history of runs in memory.
type Manager struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	order     []string
	active    string
	runner    Runner
	collector *Collector
	defaults  Request
	baseCtx   context.Context
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewManager(ctx context.Context, runner Runner, collector *Collector, defaults Request, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = NewCollector()
	}
	return &Manager{
		runs:      make(map[string]*Run),
		runner:    runner,
		collector: collector,
		defaults:  defaults,
		baseCtx:   ctx,
		logger:    logger.With("component", "job_manager"),
	}
}

func (m *Manager) CreateRun(req Request) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, m.active)
	}

	if req.StartURL == "" {
		req.StartURL = m.defaults.StartURL
	}
	if req.Location == "" {
		req.Location = m.defaults.Location
	}

	run := &Run{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	m.active = run.ID

	m.wg.Add(1)
	go m.process(run.ID, req)

	m.logger.Info("run created", "id", run.ID, "start_url", req.StartURL, "location", req.Location)
	snapshot := *run
	return &snapshot, nil
}

func (m *Manager) process(runID string, req Request) {
	defer m.wg.Done()

	m.update(runID, func(r *Run) {
		now := time.Now().UTC()
		r.Status = StatusRunning
		r.StartedAt = &now
	})

	summary, err := m.runner.Run(m.baseCtx, pipeline.RunInput{
		RunID:      runID,
		StartURL:   req.StartURL,
		Location:   req.Location,
		Categories: req.Categories,
		ProductIDs: req.ProductIDs,
	})

	m.update(runID, func(r *Run) {
		now := time.Now().UTC()
		r.CompletedAt = &now
		r.Summary = summary
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
			return
		}
		r.Status = StatusCompleted
	})

	m.mu.Lock()
	m.active = ""
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("run failed", "id", runID, "error", err)
		return
	}
	m.logger.Info("run completed", "id", runID)
}

func (m *Manager) update(runID string, fn func(*Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runID]; ok {
		fn(r)
	}
}

func (m *Manager) GetRun(runID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	snapshot := *r
	return &snapshot, nil
}

// ListRuns returns runs newest first.
func (m *Manager) ListRuns() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		snapshot := *m.runs[m.order[i]]
		runs = append(runs, &snapshot)
	}
	return runs
}

func (m *Manager) Records(runID string) ([]models.ProductRecord, error) {
	if _, err := m.GetRun(runID); err != nil {
		return nil, err
	}
	return m.collector.Records(runID), nil
}

func (m *Manager) ActiveRun() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Wait blocks until every started run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
