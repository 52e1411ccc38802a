// Package intake manages the upload queue: files land in a staging
// directory, get analyzed one by one or in bulk, and analyzed items are
// committed into the catalog.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/modules/analysis"
)

var (
	ErrNotFound    = errors.New("queue item not found")
	ErrDuplicate   = errors.New("file is already queued")
	ErrUnsupported = errors.New("unsupported file extension")
	ErrBusy        = errors.New("queue item is being analyzed")
)

// Notifier pushes queue events to connected clients. The gateway hub
// implements it; a no-op stands in when realtime is disabled.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(string, interface{}) {}

// CommitItem pairs a finished catalog record with its staged bytes. Data is
// nil when the staged file has gone missing; the record is still committed.
type CommitItem struct {
	Record models.SpecRecord
	Data   io.ReadCloser
}

type Service struct {
	mu    sync.RWMutex
	items []*Item

	analyzer   analysis.Analyzer
	stagingDir string
	allowedExt map[string]struct{}
	sem        chan struct{}
	notifier   Notifier
	logger     *zap.Logger
}

func NewService(analyzer analysis.Analyzer, stagingDir string, allowedExtensions []string, concurrency int, notifier Notifier, logger *zap.Logger) (*Service, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}

	return &Service{
		analyzer:   analyzer,
		stagingDir: stagingDir,
		allowedExt: allowed,
		sem:        make(chan struct{}, concurrency),
		notifier:   notifier,
		logger:     logger,
	}, nil
}

// AddFile stages one upload and appends it to the queue. Duplicates are
// keyed on (path, name) so the same file re-picked from the same place is
// rejected rather than queued twice.
func (s *Service) AddFile(fileName, filePath string, r io.Reader) (*Item, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, errors.New("file name is required")
	}
	if filePath == "" {
		filePath = fileName
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if _, ok := s.allowedExt[ext]; !ok {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.FilePath == filePath && existing.FileName == fileName {
			return nil, ErrDuplicate
		}
	}

	id := uuid.NewString()
	stagePath := filepath.Join(s.stagingDir, id)
	size, err := stageFile(stagePath, r)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	now := time.Now()
	item := &Item{
		ID:        id,
		FileName:  fileName,
		FilePath:  filePath,
		FileType:  models.FileTypeOf(fileName),
		Size:      size,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		stagePath: stagePath,
	}
	s.items = append(s.items, item)

	out := item.clone()
	s.notifier.Broadcast("intake:item", out)
	return out, nil
}

func stageFile(path string, r io.Reader) (int64, error) {
	if r == nil {
		return 0, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// List returns the queue in arrival order.
func (s *Service) List() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.clone())
	}
	return out
}

func (s *Service) Get(id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.find(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.clone(), nil
}

// SetHint replaces the operator hint and resets the item to pending. Old
// results are cleared because they no longer match the prompt.
func (s *Service) SetHint(id, hint string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(id)
	if item == nil {
		return nil, ErrNotFound
	}
	if item.Status == StatusAnalyzing {
		return nil, ErrBusy
	}

	item.Hint = hint
	item.resetResults()
	item.UpdatedAt = time.Now()

	out := item.clone()
	s.notifier.Broadcast("intake:item", out)
	return out, nil
}

// Remove drops an item and its staged bytes.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID != id {
			continue
		}
		if item.Status == StatusAnalyzing {
			return ErrBusy
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		if item.stagePath != "" {
			os.Remove(item.stagePath)
		}
		return nil
	}
	return ErrNotFound
}

// AnalyzeOne runs analysis for a single item synchronously and returns its
// final state. Failures land on the item as status "error"; the returned
// error is reserved for queue-level problems.
func (s *Service) AnalyzeOne(ctx context.Context, id string) (*Item, error) {
	in, err := s.beginAnalysis(id)
	if err != nil {
		return nil, err
	}

	s.sem <- struct{}{}
	result, aerr := s.analyzer.Analyze(ctx, in)
	<-s.sem

	return s.finishAnalysis(id, result, aerr)
}

// AnalyzeAll analyzes every pending item and retries failed ones, at most
// the configured number in flight at once. Each item succeeds or fails on
// its own.
func (s *Service) AnalyzeAll(ctx context.Context) int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.items))
	for _, item := range s.items {
		if item.Status == StatusPending || item.Status == StatusError {
			ids = append(ids, item.ID)
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.AnalyzeOne(ctx, id); err != nil {
				s.logger.Warn("bulk analysis skipped item", zap.String("id", id), zap.Error(err))
			}
		}(id)
	}
	wg.Wait()
	return len(ids)
}

func (s *Service) beginAnalysis(id string) (analysis.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(id)
	if item == nil {
		return analysis.Input{}, ErrNotFound
	}
	if item.Status == StatusAnalyzing {
		return analysis.Input{}, ErrBusy
	}

	item.Status = StatusAnalyzing
	item.UpdatedAt = time.Now()
	s.notifier.Broadcast("intake:item", item.clone())

	return analysis.Input{
		FileName: item.FileName,
		FilePath: item.FilePath,
		FileType: item.FileType,
		Hint:     item.Hint,
	}, nil
}

func (s *Service) finishAnalysis(id string, result analysis.Result, aerr error) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(id)
	if item == nil {
		// Removed mid-flight; nothing to record.
		return nil, ErrNotFound
	}

	if aerr != nil {
		item.Status = StatusError
		item.Error = aerr.Error()
		item.Summary = ""
		item.Keywords = nil
	} else {
		item.Status = StatusAnalyzed
		item.Error = ""
		item.Summary = result.Summary
		item.Keywords = result.Keywords
	}
	item.UpdatedAt = time.Now()

	out := item.clone()
	s.notifier.Broadcast("intake:item", out)
	return out, nil
}

// Commit hands every analyzed item to fn as catalog records plus staged
// bytes. When fn succeeds the items leave the queue and their staged files
// are deleted; on failure the queue is untouched.
func (s *Service) Commit(ctx context.Context, downloadLink func(id string) string, fn func(context.Context, []CommitItem) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit := make([]CommitItem, 0, len(s.items))
	committed := make(map[string]struct{})
	now := time.Now()
	for _, item := range s.items {
		if item.Status != StatusAnalyzed {
			continue
		}

		// The record is born now, not when the file entered the queue.
		record := models.SpecRecord{
			ID:           item.ID,
			FileName:     item.FileName,
			FilePath:     item.FilePath,
			FileType:     item.FileType,
			Summary:      item.Summary,
			Keywords:     append(models.StringArray{}, item.Keywords...),
			DownloadLink: downloadLink(item.ID),
			CreatedAt:    now,
		}

		var data io.ReadCloser
		if item.stagePath != "" {
			if f, err := os.Open(item.stagePath); err == nil {
				data = f
			} else {
				s.logger.Warn("staged file missing at commit", zap.String("id", item.ID), zap.Error(err))
			}
		}

		commit = append(commit, CommitItem{Record: record, Data: data})
		committed[item.ID] = struct{}{}
	}

	if len(commit) == 0 {
		return 0, nil
	}

	if err := fn(ctx, commit); err != nil {
		for _, c := range commit {
			if c.Data != nil {
				c.Data.Close()
			}
		}
		return 0, err
	}

	kept := s.items[:0]
	for _, item := range s.items {
		if _, ok := committed[item.ID]; !ok {
			kept = append(kept, item)
			continue
		}
		if item.stagePath != "" {
			os.Remove(item.stagePath)
		}
	}
	s.items = kept

	s.notifier.Broadcast("catalog:changed", map[string]int{"committed": len(commit)})
	return len(commit), nil
}

// Stats reports queue composition, mostly for the realtime dashboard.
func (s *Service) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{"total": len(s.items)}
	for _, item := range s.items {
		stats[string(item.Status)]++
	}
	return stats
}

// CleanupStaging removes staged files no queue item references. Run from
// the scheduler to reclaim space after crashes.
func (s *Service) CleanupStaging(ctx context.Context) error {
	s.mu.RLock()
	live := make(map[string]struct{}, len(s.items))
	for _, item := range s.items {
		if item.stagePath != "" {
			live[filepath.Base(item.stagePath)] = struct{}{}
		}
	}
	s.mu.RUnlock()

	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return err
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}
		if _, ok := live[entry.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.stagingDir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("staging cleanup", zap.Int("removed", removed))
	}
	return nil
}

func (s *Service) find(id string) *Item {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}
