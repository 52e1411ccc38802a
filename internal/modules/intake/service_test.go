package intake

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgespec/core/internal/modules/analysis"
)

var testExtensions = []string{"pdf", "xls", "xlsx", "zip"}

type stubAnalyzer struct {
	mu      sync.Mutex
	calls   int
	results map[string]analysis.Result
	errs    map[string]error
}

func (a *stubAnalyzer) Analyze(_ context.Context, in analysis.Input) (analysis.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if err, ok := a.errs[in.FileName]; ok {
		return analysis.Result{}, err
	}
	if res, ok := a.results[in.FileName]; ok {
		return res, nil
	}
	return analysis.Result{Summary: "summary of " + in.FileName, Keywords: []string{"forging"}}, nil
}

func newTestService(t *testing.T, analyzer analysis.Analyzer) *Service {
	t.Helper()
	if analyzer == nil {
		analyzer = &stubAnalyzer{}
	}
	svc, err := NewService(analyzer, t.TempDir(), testExtensions, 2, nil, nil)
	require.NoError(t, err)
	return svc
}

func addFile(t *testing.T, svc *Service, name string) *Item {
	t.Helper()
	item, err := svc.AddFile(name, "/uploads/"+name, strings.NewReader("content of "+name))
	require.NoError(t, err)
	return item
}

func TestAddFileValidation(t *testing.T) {
	svc := newTestService(t, nil)

	item := addFile(t, svc, "spec.pdf")
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, "PDF", string(item.FileType))
	assert.Equal(t, int64(len("content of spec.pdf")), item.Size)

	_, err := svc.AddFile("notes.txt", "/uploads/notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	// Same (path, name) pair is a duplicate; same name elsewhere is not.
	_, err = svc.AddFile("spec.pdf", "/uploads/spec.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.AddFile("spec.pdf", "/archive/spec.pdf", strings.NewReader("x"))
	assert.NoError(t, err)
}

func TestAnalyzeOneLifecycle(t *testing.T) {
	analyzer := &stubAnalyzer{results: map[string]analysis.Result{
		"spec.pdf": {Summary: "프레스 단조 시방", Keywords: []string{"단조", "프레스"}},
	}}
	svc := newTestService(t, analyzer)
	item := addFile(t, svc, "spec.pdf")

	got, err := svc.AnalyzeOne(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzed, got.Status)
	assert.Equal(t, "프레스 단조 시방", got.Summary)
	assert.Equal(t, []string{"단조", "프레스"}, got.Keywords)
	assert.Empty(t, got.Error)
}

func TestAnalyzeOneFailureLandsOnItem(t *testing.T) {
	analyzer := &stubAnalyzer{errs: map[string]error{
		"bad.pdf": errors.New("analysis failed: provider exploded"),
	}}
	svc := newTestService(t, analyzer)
	item := addFile(t, svc, "bad.pdf")

	got, err := svc.AnalyzeOne(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Contains(t, got.Error, "provider exploded")
	assert.Empty(t, got.Summary)
}

func TestSetHintResetsResults(t *testing.T) {
	svc := newTestService(t, nil)
	item := addFile(t, svc, "spec.pdf")

	got, err := svc.AnalyzeOne(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAnalyzed, got.Status)

	updated, err := svc.SetHint(item.ID, "열간 단조")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	assert.Empty(t, updated.Summary)
	assert.Empty(t, updated.Keywords)
	assert.Equal(t, "열간 단조", updated.Hint)
}

func TestAnalyzeAllIsIndependentPerItem(t *testing.T) {
	analyzer := &stubAnalyzer{errs: map[string]error{
		"bad.pdf": errors.New("analysis failed: boom"),
	}}
	svc := newTestService(t, analyzer)
	addFile(t, svc, "good.pdf")
	addFile(t, svc, "bad.pdf")
	addFile(t, svc, "also-good.xlsx")

	count := svc.AnalyzeAll(context.Background())
	assert.Equal(t, 3, count)

	byName := map[string]Status{}
	for _, item := range svc.List() {
		byName[item.FileName] = item.Status
	}
	assert.Equal(t, StatusAnalyzed, byName["good.pdf"])
	assert.Equal(t, StatusError, byName["bad.pdf"])
	assert.Equal(t, StatusAnalyzed, byName["also-good.xlsx"])

	// A second pass retries only the failed item.
	assert.Equal(t, 1, svc.AnalyzeAll(context.Background()))
	for _, item := range svc.List() {
		if item.FileName == "bad.pdf" {
			assert.Equal(t, StatusError, item.Status)
		}
	}
}

func TestCommitMovesAnalyzedItemsOut(t *testing.T) {
	svc := newTestService(t, nil)
	a := addFile(t, svc, "a.pdf")
	addFile(t, svc, "b.pdf") // stays pending

	_, err := svc.AnalyzeOne(context.Background(), a.ID)
	require.NoError(t, err)

	commitStart := time.Now()
	var committed []CommitItem
	count, err := svc.Commit(context.Background(),
		func(id string) string { return "/api/v1/records/" + id + "/download" },
		func(_ context.Context, items []CommitItem) error {
			committed = items
			for _, item := range items {
				require.NotNil(t, item.Data)
				data, err := io.ReadAll(item.Data)
				require.NoError(t, err)
				assert.Equal(t, "content of a.pdf", string(data))
				item.Data.Close()
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, committed, 1)
	assert.Equal(t, a.ID, committed[0].Record.ID)
	assert.Equal(t, "/api/v1/records/"+a.ID+"/download", committed[0].Record.DownloadLink)
	assert.Equal(t, "summary of a.pdf", committed[0].Record.Summary)

	// Records are stamped when they enter the catalog, not when the file
	// was queued.
	assert.False(t, committed[0].Record.CreatedAt.Before(commitStart))

	// Only the pending item remains.
	left := svc.List()
	require.Len(t, left, 1)
	assert.Equal(t, "b.pdf", left[0].FileName)
}

func TestCommitFailureKeepsQueue(t *testing.T) {
	svc := newTestService(t, nil)
	a := addFile(t, svc, "a.pdf")
	_, err := svc.AnalyzeOne(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(),
		func(id string) string { return "/dl/" + id },
		func(context.Context, []CommitItem) error { return errors.New("storage down") })
	require.Error(t, err)

	require.Len(t, svc.List(), 1)
	assert.Equal(t, StatusAnalyzed, svc.List()[0].Status)
}

func TestRemoveDeletesStagedFile(t *testing.T) {
	svc := newTestService(t, nil)
	item := addFile(t, svc, "a.pdf")

	require.NoError(t, svc.Remove(item.ID))
	assert.ErrorIs(t, svc.Remove(item.ID), ErrNotFound)
	assert.Empty(t, svc.List())
}
