package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/grocery-scraper/internal/jobs"
	"github.com/maltedev/grocery-scraper/internal/parser"
	"github.com/maltedev/grocery-scraper/internal/site"
)

type Handlers struct {
	jobs    *jobs.Manager
	parser  parser.Parser
	adapter site.Adapter
	logger  *slog.Logger
}

func NewHandlers(jobs *jobs.Manager, p parser.Parser, adapter site.Adapter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:    jobs,
		parser:  p,
		adapter: adapter,
		logger:  logger.With("component", "api"),
	}
}

// Health reports liveness and the identifier of the run in progress, if any.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"active_run": h.jobs.ActiveRun(),
	})
}

// CreateRun starts a background scrape. An empty body scrapes every category
// at the configured location.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := h.jobs.CreateRun(req)
	if err != nil {
		if errors.Is(err, jobs.ErrRunInProgress) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to create run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, run)
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.jobs.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListRuns())
}

func (h *Handlers) GetRunRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.jobs.Records(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

type ParseCategoriesRequest struct {
	HTML    string `json:"html"`
	BaseURL string `json:"base_url"`
}

// ParseCategories extracts category links from posted markup.
func (h *Handlers) ParseCategories(w http.ResponseWriter, r *http.Request) {
	var req ParseCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BaseURL == "" {
		req.BaseURL = h.adapter.BaseURL()
	}

	categories, err := h.parser.ParseCategories(req.HTML, req.BaseURL, h.adapter.CategoryPathPrefix())
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, categories)
}

type ParseProductRequest struct {
	HTML      string `json:"html"`
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
}

// ParseProduct normalizes the embedded state of a posted product page.
func (h *Handlers) ParseProduct(w http.ResponseWriter, r *http.Request) {
	var req ParseProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.URL == "" {
		req.URL = h.adapter.ProductURL(req.ProductID)
	}

	records, err := h.parser.ParseProductPage(req.HTML, req.ProductID, req.URL)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
