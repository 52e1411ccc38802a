package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/modules/blob"
	"github.com/forgespec/core/internal/modules/catalog"
)

type memRepo struct {
	records []models.SpecRecord
}

func (r *memRepo) Load(context.Context) ([]models.SpecRecord, error) {
	return append([]models.SpecRecord(nil), r.records...), nil
}

func (r *memRepo) Save(_ context.Context, records []models.SpecRecord) error {
	r.records = append([]models.SpecRecord(nil), records...)
	return nil
}

func newCatalog(t *testing.T, blobs blob.Store, seed ...models.SpecRecord) *catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(context.Background(), &memRepo{records: seed}, blobs, nil, nil)
	require.NoError(t, err)
	return svc
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()

	srcBlobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	rec := models.SpecRecord{
		ID:        "r1",
		FileName:  "spec.pdf",
		FileType:  models.FileTypePDF,
		Summary:   "프레스 단조 시방",
		Keywords:  models.StringArray{"단조"},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, srcBlobs.Put(ctx, "r1", strings.NewReader("pdf bytes")))

	backupDir := t.TempDir()
	src := NewService(newCatalog(t, srcBlobs, rec), srcBlobs, backupDir, nil, nil)

	artifact, err := src.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.Records)
	assert.Equal(t, 1, artifact.Blobs)
	assert.True(t, strings.HasPrefix(artifact.Filename, "backup-"))

	items := src.List()
	require.Len(t, items, 1)
	assert.Equal(t, artifact.Filename, items[0].Filename)

	// Restore into an empty deployment.
	dstBlobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	dstCatalog := newCatalog(t, dstBlobs)
	dst := NewService(dstCatalog, dstBlobs, t.TempDir(), nil, nil)

	data, err := os.ReadFile(filepath.Join(backupDir, artifact.Filename))
	require.NoError(t, err)

	result, err := dst.Restore(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Records)
	assert.Equal(t, 1, result.Blobs)

	got, err := dstCatalog.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "spec.pdf", got.FileName)
	assert.Equal(t, models.StringArray{"단조"}, got.Keywords)

	rc, err := dstBlobs.Get(ctx, "r1")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(body))
}

func TestRestoreExistingRecordWins(t *testing.T) {
	ctx := context.Background()

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	src := NewService(newCatalog(t, blobs, models.SpecRecord{
		ID: "r1", FileName: "archived.pdf", CreatedAt: time.Now(),
	}), blobs, t.TempDir(), nil, nil)

	artifact, err := src.Create(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)

	dstCatalog := newCatalog(t, blobs, models.SpecRecord{
		ID: "r1", FileName: "current.pdf", CreatedAt: time.Now(),
	})
	dst := NewService(dstCatalog, blobs, t.TempDir(), nil, nil)

	result, err := dst.Restore(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Records)

	got, err := dstCatalog.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "current.pdf", got.FileName)
}

func TestRestoreRejectsForeignArchive(t *testing.T) {
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	svc := NewService(newCatalog(t, blobs), blobs, t.TempDir(), nil, nil)

	_, err = svc.Restore(context.Background(), []byte("not a zip"))
	assert.Error(t, err)
}

func TestEncodeDecodeRecords(t *testing.T) {
	in := []models.SpecRecord{
		{ID: "a", FileName: "a.pdf", FileType: models.FileTypePDF, Keywords: models.StringArray{"x", "y"}},
		{ID: "b", FileName: "b.xlsx", FileType: models.FileTypeXLSX},
	}

	payload, err := encodeRecords(in)
	require.NoError(t, err)

	out, err := decodeRecords(payload)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, models.StringArray{"x", "y"}, out[0].Keywords)
	assert.Equal(t, "b.xlsx", out[1].FileName)

	_, err = decodeRecords([]byte{1, 2})
	assert.Error(t, err)
}
