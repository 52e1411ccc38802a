// Package analysis turns an uploaded specification file into a short summary
// and search keywords by calling a configured AI provider.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/forgespec/core/internal/config"
	"github.com/forgespec/core/internal/models"
)

// ErrNoAPIKey means the provider key was never configured. The server still
// runs; every analysis request reports this until a key is supplied.
var ErrNoAPIKey = errors.New("AI api key is not configured")

// fallbackSummary is stored verbatim when the model answers with an empty
// summary, so the catalog entry is still usable.
const fallbackSummary = "summary generation failed"

// errContentMissing names an empty or missing model response payload.
var errContentMissing = errors.New("content missing")

// Input identifies one file to analyze.
type Input struct {
	FileName string
	FilePath string
	FileType models.FileType
	Hint     string
}

// Result is what gets attached to the queue item and later the catalog record.
type Result struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Analyzer is the seam intake uses; tests swap in a stub.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (Result, error)
}

// Service calls the configured provider. It is stateless and safe for
// concurrent use.
type Service struct {
	cfg    config.AIConfig
	client *http.Client
}

func NewService(cfg config.AIConfig) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze produces a summary and keyword set for one file. Every failure
// comes back wrapped so callers can surface a single error shape.
func (s *Service) Analyze(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.FileName) == "" && strings.TrimSpace(in.Hint) == "" {
		return Result{}, fmt.Errorf("analysis failed: %w", errors.New("file name is required"))
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return Result{}, fmt.Errorf("analysis failed: %w", ErrNoAPIKey)
	}

	systemPrompt, prompt := buildAnalysisPrompt(in)
	raw, err := s.generate(ctx, systemPrompt, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("analysis failed: %w", err)
	}

	payload, err := unmarshalAIJSON(raw)
	if err != nil {
		return Result{}, fmt.Errorf("analysis failed: %w", err)
	}
	return sanitizeResult(payload), nil
}

// sanitizeResult enforces the shape the rest of the system relies on: a
// non-empty summary and a non-nil, trimmed keyword list.
func sanitizeResult(payload aiPayload) Result {
	out := Result{
		Summary:  strings.TrimSpace(payload.Summary),
		Keywords: make([]string, 0, len(payload.Keywords)),
	}
	if out.Summary == "" {
		out.Summary = fallbackSummary
	}
	for _, kw := range payload.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out.Keywords = append(out.Keywords, kw)
	}
	return out
}
