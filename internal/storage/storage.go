package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maltedev/grocery-scraper/internal/models"
)

// IDStore holds discovered identifiers grouped by category URL. Every change
// rewrites the whole file.
type IDStore struct {
	mu         sync.RWMutex
	categories map[string]*models.CategoryIDs
	filename   string
}

func NewIDStore(filename string) (*IDStore, error) {
	s := &IDStore{
		categories: make(map[string]*models.CategoryIDs),
		filename:   filename,
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

func (s *IDStore) Put(category models.Category, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.URL == "" {
		return fmt.Errorf("category URL is required")
	}

	sorted := append(make([]string, 0, len(ids)), ids...)
	sort.Strings(sorted)

	s.categories[category.URL] = &models.CategoryIDs{
		Name:       category.Name,
		ProductIDs: sorted,
		ScrapedAt:  time.Now().UTC(),
	}
	return s.save()
}

func (s *IDStore) Has(categoryURL string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.categories[categoryURL]
	return ok
}

func (s *IDStore) Get(categoryURL string) (models.CategoryIDs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[categoryURL]
	if !ok {
		return models.CategoryIDs{}, false
	}
	return *c, true
}

// AllIDs returns the union of identifiers across categories, sorted.
func (s *IDStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, c := range s.categories {
		for _, id := range c.ProductIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *IDStore) GetStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{"categories": len(s.categories)}
	for _, c := range s.categories {
		if len(c.ProductIDs) == 0 {
			stats["empty"]++
		}
		stats["ids"] += len(c.ProductIDs)
	}
	return stats
}

// Flush writes the current state even when nothing was added, so a run with
// no categories still leaves a file behind.
func (s *IDStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *IDStore) save() error {
	return WriteJSONAtomic(s.filename, s.categories, "  ")
}

func (s *IDStore) Load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.categories)
}

// RecordStore accumulates product records and writes them as one JSON array.
type RecordStore struct {
	mu       sync.Mutex
	records  []models.ProductRecord
	filename string
}

func NewRecordStore(filename string) *RecordStore {
	return &RecordStore{
		records:  make([]models.ProductRecord, 0),
		filename: filename,
	}
}

func (s *RecordStore) Append(records ...models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	return s.save()
}

// Reset drops the accumulated records so a new run starts from an empty
// file.
func (s *RecordStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]models.ProductRecord, 0)
	return s.save()
}

func (s *RecordStore) Records() []models.ProductRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.ProductRecord(nil), s.records...)
}

func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *RecordStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *RecordStore) save() error {
	return WriteJSONAtomic(s.filename, s.records, "    ")
}

func LoadRecords(filename string) ([]models.ProductRecord, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var records []models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return records, nil
}

// WriteJSONAtomic marshals v and replaces filename through a temp file in the
// same directory.
func WriteJSONAtomic(filename string, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := filename + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, filename)
}

// ReadIDList reads identifiers from a file holding either one identifier per
// line, a JSON array of strings, or an IDStore file.
func ReadIDList(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []string{}, nil
	}

	switch trimmed[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return nil, fmt.Errorf("failed to decode id list %s: %w", filename, err)
		}
		return dedupe(ids), nil
	case '{':
		var grouped map[string]models.CategoryIDs
		if err := json.Unmarshal(trimmed, &grouped); err != nil {
			return nil, fmt.Errorf("failed to decode id file %s: %w", filename, err)
		}
		var ids []string
		for _, c := range grouped {
			ids = append(ids, c.ProductIDs...)
		}
		out := dedupe(ids)
		sort.Strings(out)
		return out, nil
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
