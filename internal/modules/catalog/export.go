package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgespec/core/internal/models"
)

// ExportFilename names a catalog export taken on the given day.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("forgespec-catalog-%s.json", now.Format("2006-01-02"))
}

// Export renders the whole catalog as indented JSON, newest first.
func (s *Service) Export() ([]byte, error) {
	return json.MarshalIndent(s.Snapshot(), "", "  ")
}

// Import merges a previously exported JSON array into the catalog. Only a
// top-level array is accepted. Duplicate ids resolve conservatively: the
// first occurrence inside the import wins, and records already in the
// catalog always win over imported ones. Returns how many records were
// actually added.
func (s *Service) Import(ctx context.Context, data []byte) (int, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return 0, errors.New("import must be a JSON array of records")
	}

	var incoming []models.SpecRecord
	if err := json.Unmarshal([]byte(trimmed), &incoming); err != nil {
		return 0, fmt.Errorf("invalid import payload: %w", err)
	}
	return s.MergeRecords(ctx, incoming)
}

// MergeRecords folds external records into the catalog. Duplicate ids
// resolve conservatively: the first occurrence in the input wins, and
// records already present always win over incoming ones. Returns how many
// records were actually added.
func (s *Service) MergeRecords(ctx context.Context, incoming []models.SpecRecord) (int, error) {
	s.mu.RLock()
	existing := make(map[string]struct{}, len(s.records))
	for _, rec := range s.records {
		existing[rec.ID] = struct{}{}
	}
	merged := append([]models.SpecRecord(nil), s.records...)
	s.mu.RUnlock()

	seen := make(map[string]struct{}, len(incoming))
	added := 0
	for _, rec := range incoming {
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		if _, ok := existing[rec.ID]; ok {
			continue
		}
		if rec.Keywords == nil {
			rec.Keywords = models.StringArray{}
		}
		merged = append(merged, rec)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := s.replaceAll(ctx, merged); err != nil {
		return 0, err
	}
	return added, nil
}
