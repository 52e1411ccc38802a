package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/forgespec/core/internal/pkg/retryfetch"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// analysisSchema constrains structured output so the reply decodes without
// fence stripping in the common case.
var analysisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "keywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["summary", "keywords"]
}`)

// generateGemini calls the Gemini generateContent endpoint directly. The API
// key travels as a query parameter, which is how this API authenticates.
func (s *Service) generateGemini(ctx context.Context, systemPrompt, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: geminiGeneration{
			ResponseMimeType: "application/json",
			ResponseSchema:   analysisSchema,
		},
	})
	if err != nil {
		return "", err
	}

	resp, err := retryfetch.Do(ctx, s.client, s.geminiURL(), retryfetch.Options{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}, s.cfg.MaxRetries)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("invalid gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errContentMissing
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (s *Service) geminiURL() string {
	base := strings.TrimRight(s.cfg.Endpoint, "/")
	if base == "" {
		base = defaultGeminiEndpoint
	}
	return fmt.Sprintf("%s/%s:generateContent?key=%s", base, s.cfg.Model, url.QueryEscape(s.cfg.APIKey))
}
