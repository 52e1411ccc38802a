// Package backup archives the catalog into a zip: the record table as
// concatenated BSON documents plus every stored original file, with a
// manifest describing the layout.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/modules/blob"
	"github.com/forgespec/core/internal/modules/catalog"
)

const (
	backupRootDir      = "forgespec"
	backupDBDir        = backupRootDir + "/db"
	backupBlobDir      = backupRootDir + "/blobs"
	backupManifestFile = backupRootDir + "/manifest.json"
	backupFormat       = "forgespec-bson"
	backupVersion      = 1

	// EnvBackupDir overrides where backup archives land.
	EnvBackupDir = "FORGESPEC_BACKUP_DIR"
)

type manifest struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
	Blobs     int       `json:"blobs"`
}

// Artifact describes one written backup archive.
type Artifact struct {
	Filename string `json:"filename"`
	Path     string `json:"-"`
	Size     string `json:"size"`
	Records  int    `json:"records"`
	Blobs    int    `json:"blobs"`
}

// Item is one archive in the backup directory listing.
type Item struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
}

// Notifier mirrors the gateway broadcast seam.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(string, interface{}) {}

type Service struct {
	catalog  *catalog.Service
	blobs    blob.Store
	dir      string
	notifier Notifier
	logger   *zap.Logger
}

func NewService(catalogSvc *catalog.Service, blobs blob.Store, dir string, notifier Notifier, logger *zap.Logger) *Service {
	if override := strings.TrimSpace(os.Getenv(EnvBackupDir)); override != "" {
		dir = override
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalogSvc, blobs: blobs, dir: dir, notifier: notifier, logger: logger}
}

// Create writes a new archive into the backup directory. Records whose
// bytes are missing from the blob store are archived metadata-only.
func (s *Service) Create(ctx context.Context) (*Artifact, error) {
	records := s.catalog.Snapshot()

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	payload, err := encodeRecords(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	f, err := w.Create(path.Join(backupDBDir, "spec_records.bson"))
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(payload); err != nil {
		return nil, err
	}

	archivedBlobs := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := s.blobs.Get(ctx, rec.ID)
		if err != nil {
			if err != blob.ErrNotFound {
				s.logger.Warn("blob unreadable, skipping", zap.String("id", rec.ID), zap.Error(err))
			}
			continue
		}
		bf, err := w.Create(path.Join(backupBlobDir, rec.ID))
		if err == nil {
			_, err = io.Copy(bf, rc)
		}
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("archive blob %s: %w", rec.ID, err)
		}
		archivedBlobs++
	}

	manifestData, err := json.Marshal(manifest{
		Format:    backupFormat,
		Version:   backupVersion,
		CreatedAt: time.Now().UTC(),
		Records:   len(records),
		Blobs:     archivedBlobs,
	})
	if err != nil {
		return nil, err
	}
	mf, err := w.Create(backupManifestFile)
	if err != nil {
		return nil, err
	}
	if _, err := mf.Write(manifestData); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("backup-%s.zip", time.Now().Format("2006-01-02T15-04-05"))
	filePath := filepath.Join(s.dir, filename)
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		Filename: filename,
		Path:     filePath,
		Size:     formatSize(int64(buf.Len())),
		Records:  len(records),
		Blobs:    archivedBlobs,
	}
	s.logger.Info("backup created",
		zap.String("file", filename),
		zap.Int("records", len(records)),
		zap.Int("blobs", archivedBlobs))
	s.notifier.Broadcast("backup:done", artifact)
	return artifact, nil
}

// List names the archives currently in the backup directory.
func (s *Service) List() []Item {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []Item{}
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{Filename: e.Name(), Size: formatSize(info.Size())})
	}
	return items
}

// RestoreResult reports what a restore changed.
type RestoreResult struct {
	Records int `json:"records"`
	Blobs   int `json:"blobs"`
}

// Restore merges an archive into the running catalog. Existing records win
// over archived ones; blob bytes are re-put for every archived blob so a
// wiped blob store is repopulated.
func (s *Service) Restore(ctx context.Context, data []byte) (*RestoreResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	root, err := findArchiveRoot(zr)
	if err != nil {
		return nil, err
	}

	var records []models.SpecRecord
	blobsRestored := 0
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := file.Name

		switch {
		case name == path.Join(root, "db", "spec_records.bson"):
			payload, err := readZipFile(file)
			if err != nil {
				return nil, err
			}
			records, err = decodeRecords(payload)
			if err != nil {
				return nil, fmt.Errorf("decode records: %w", err)
			}
		case strings.HasPrefix(name, path.Join(root, "blobs")+"/"):
			id := path.Base(name)
			if id == "" || id == "." {
				continue
			}
			payload, err := readZipFile(file)
			if err != nil {
				return nil, err
			}
			if err := s.blobs.Put(ctx, id, bytes.NewReader(payload)); err != nil {
				s.logger.Warn("blob restore failed", zap.String("id", id), zap.Error(err))
				continue
			}
			blobsRestored++
		}
	}

	if records == nil {
		return nil, fmt.Errorf("archive has no %s/db/spec_records.bson", root)
	}

	added, err := s.catalog.MergeRecords(ctx, records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("backup restored", zap.Int("records", added), zap.Int("blobs", blobsRestored))
	s.notifier.Broadcast("catalog:changed", map[string]int{"restored": added})
	return &RestoreResult{Records: added, Blobs: blobsRestored}, nil
}

// ReadArchive loads a named archive from the backup directory.
func (s *Service) ReadArchive(filename string) ([]byte, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || !strings.HasSuffix(name, ".zip") {
		return nil, fmt.Errorf("invalid archive name")
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}

// findArchiveRoot locates the manifest and returns its directory, so
// archives produced under a different root name still restore.
func findArchiveRoot(zr *zip.Reader) (string, error) {
	for _, file := range zr.File {
		if path.Base(file.Name) == "manifest.json" {
			var m manifest
			payload, err := readZipFile(file)
			if err != nil {
				return "", err
			}
			if err := json.Unmarshal(payload, &m); err != nil {
				return "", fmt.Errorf("invalid manifest: %w", err)
			}
			if m.Format != backupFormat {
				return "", fmt.Errorf("unsupported archive format %q", m.Format)
			}
			return path.Dir(file.Name), nil
		}
	}
	return "", fmt.Errorf("archive has no manifest.json")
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
