package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/forgespec/core/internal/models"
	"github.com/forgespec/core/internal/modules/blob"
)

// Download resolves a record's bytes. When the blob has gone missing the
// caller gets a plain-text stand-in built from the metadata, flagged by
// fallback=true, so the record stays downloadable in some form.
func (s *Service) Download(ctx context.Context, id string) (models.SpecRecord, io.ReadCloser, bool, error) {
	rec, err := s.Get(id)
	if err != nil {
		return models.SpecRecord{}, nil, false, err
	}

	rc, err := s.blobs.Get(ctx, id)
	if err == nil {
		return rec, rc, false, nil
	}
	if !errors.Is(err, blob.ErrNotFound) {
		return models.SpecRecord{}, nil, false, err
	}

	s.logger.Warn("blob missing, serving metadata fallback", zap.String("id", id))
	return rec, io.NopCloser(strings.NewReader(fallbackText(rec))), true, nil
}

func fallbackText(rec models.SpecRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "파일명: %s\n", rec.FileName)
	fmt.Fprintf(&b, "유형: %s\n", rec.FileType)
	fmt.Fprintf(&b, "요약: %s\n", rec.Summary)
	fmt.Fprintf(&b, "키워드: %s\n", strings.Join(rec.Keywords, ", "))
	fmt.Fprintf(&b, "등록일: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("\n원본 파일을 찾을 수 없어 메타데이터만 제공합니다.\n")
	return b.String()
}
