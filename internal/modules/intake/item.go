package intake

import (
	"time"

	"github.com/forgespec/core/internal/models"
)

// Status tracks one queue item through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusError     Status = "error"
)

// Item is one uploaded file waiting in the intake queue. Its bytes sit in
// the staging directory until the item is committed or removed.
type Item struct {
	ID        string          `json:"id"`
	FileName  string          `json:"fileName"`
	FilePath  string          `json:"filePath"`
	FileType  models.FileType `json:"fileType"`
	Size      int64           `json:"size"`
	Hint      string          `json:"hint"`
	Status    Status          `json:"status"`
	Summary   string          `json:"summary"`
	Keywords  []string        `json:"keywords"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created"`
	UpdatedAt time.Time       `json:"updated"`

	stagePath string
}

func (i *Item) clone() *Item {
	out := *i
	out.Keywords = append([]string(nil), i.Keywords...)
	return &out
}

// resetResults drops any previous analysis output. Used when the hint
// changes, since stale results would describe a different prompt.
func (i *Item) resetResults() {
	i.Status = StatusPending
	i.Summary = ""
	i.Keywords = nil
	i.Error = ""
}
