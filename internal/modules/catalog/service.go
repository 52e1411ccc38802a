// Package catalog keeps the committed specification records: an in-memory
// working set backed by a persistence snapshot, with original file bytes in
// the blob store under the record id.
package catalog

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/modules/blob"
)

var ErrNotFound = errors.New("record not found")

// Notifier mirrors the gateway broadcast seam used by intake.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(string, interface{}) {}

// Entry is one record plus its original bytes, as handed over at commit.
type Entry struct {
	Record models.SpecRecord
	Data   io.ReadCloser
}

type Service struct {
	mu      sync.RWMutex
	records []models.SpecRecord // newest first

	repo     Repo
	blobs    blob.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService loads the persisted snapshot into memory. A fresh deployment
// with no snapshot starts empty.
func NewService(ctx context.Context, repo Repo, blobs blob.Store, notifier Notifier, logger *zap.Logger) (*Service, error) {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &Service{
		records:  FilterAndSort(records, "", SortNewest),
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// List returns the records matching query in the requested order.
func (s *Service) List(query string, sortBy SortOption) []models.SpecRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterAndSort(s.records, query, sortBy)
}

func (s *Service) Get(id string) (models.SpecRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.SpecRecord{}, ErrNotFound
}

// Commit adds freshly analyzed records to the catalog. Blob writes are best
// effort: a failed write is logged and the record is committed anyway, since
// losing bytes must never lose metadata. The snapshot save is awaited, so a
// persistence failure fails the commit.
func (s *Service) Commit(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if err := s.blobs.Put(ctx, entry.Record.ID, entry.Data); err != nil {
			s.logger.Warn("blob write failed, committing metadata anyway",
				zap.String("id", entry.Record.ID), zap.Error(err))
		}
		if entry.Data != nil {
			entry.Data.Close()
		}
	}

	next := make([]models.SpecRecord, 0, len(s.records)+len(entries))
	for _, entry := range entries {
		next = append(next, entry.Record)
	}
	next = append(next, s.records...)
	next = FilterAndSort(next, "", SortNewest)

	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	s.records = next

	s.notifier.Broadcast("catalog:changed", map[string]int{"total": len(next)})
	return nil
}

// Delete removes one record and attempts to drop its blob. A dangling blob
// is tolerated; a missing record is an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every listed record it can find and returns how many
// metadata entries went away. Blob deletion is attempted for every requested
// id, including ids with no metadata entry, so orphaned blobs can be purged
// by id.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if err := s.blobs.Delete(ctx, id); err != nil {
			s.logger.Warn("blob delete failed", zap.String("id", id), zap.Error(err))
		}
	}

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}

	next := make([]models.SpecRecord, 0, len(s.records))
	for _, rec := range s.records {
		if _, ok := requested[rec.ID]; !ok {
			next = append(next, rec)
		}
	}
	deleted := len(s.records) - len(next)
	if deleted == 0 {
		return 0, nil
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return 0, err
	}
	s.records = next

	s.notifier.Broadcast("catalog:changed", map[string]int{"total": len(next)})
	return deleted, nil
}

// Count reports the catalog size.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// replaceAll swaps the whole catalog; import and restore go through here.
func (s *Service) replaceAll(ctx context.Context, records []models.SpecRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := FilterAndSort(records, "", SortNewest)
	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	s.records = next

	s.notifier.Broadcast("catalog:changed", map[string]int{"total": len(next)})
	return nil
}

// Snapshot returns a copy of every record, newest first.
func (s *Service) Snapshot() []models.SpecRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SpecRecord(nil), s.records...)
}

// OpenBlob exposes the stored bytes for one record id.
func (s *Service) OpenBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	return s.blobs.Get(ctx, id)
}
