package intake

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/forgespec/core/internal/pkg/response"
)

type Handler struct {
	svc          *Service
	commitFn     func(c *gin.Context, items []CommitItem) error
	downloadLink func(id string) string
}

func NewHandler(svc *Service, commitFn func(c *gin.Context, items []CommitItem) error, downloadLink func(id string) string) *Handler {
	return &Handler{svc: svc, commitFn: commitFn, downloadLink: downloadLink}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/queue")

	g.GET("", authMW, h.list)
	g.POST("/files", authMW, h.addFiles)
	g.PATCH("/:id/hint", authMW, h.setHint)
	g.DELETE("/:id", authMW, h.remove)
	g.POST("/:id/analyze", authMW, h.analyzeOne)
	g.POST("/analyze", authMW, h.analyzeAll)
	g.POST("/commit", authMW, h.commit)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.svc.List())
}

// addFiles accepts a multipart form with one or more "files" parts. Each
// file is accepted or rejected on its own so one bad extension does not
// sink the whole batch.
func (h *Handler) addFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "multipart form is required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		response.BadRequest(c, "업로드할 파일이 없습니다")
		return
	}

	paths := form.Value["paths"]

	added := make([]*Item, 0, len(headers))
	rejected := make([]gin.H, 0)
	for i, header := range headers {
		path := header.Filename
		if i < len(paths) && paths[i] != "" {
			path = paths[i]
		}

		f, err := header.Open()
		if err != nil {
			rejected = append(rejected, gin.H{"fileName": header.Filename, "reason": err.Error()})
			continue
		}
		item, err := h.svc.AddFile(header.Filename, path, f)
		f.Close()
		if err != nil {
			rejected = append(rejected, gin.H{"fileName": header.Filename, "reason": err.Error()})
			continue
		}
		added = append(added, item)
	}

	response.OK(c, gin.H{"added": added, "rejected": rejected})
}

type hintDTO struct {
	Hint string `json:"hint"`
}

func (h *Handler) setHint(c *gin.Context) {
	var dto hintDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.svc.SetHint(c.Param("id"), dto.Hint)
	if err != nil {
		h.writeQueueError(c, err)
		return
	}
	response.OK(c, item)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Remove(c.Param("id")); err != nil {
		h.writeQueueError(c, err)
		return
	}
	response.NoContent(c)
}

// analyzeOne kicks off analysis in the background and answers immediately;
// progress arrives over the gateway and through queue polling.
func (h *Handler) analyzeOne(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Get(id); err != nil {
		h.writeQueueError(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		_, _ = h.svc.AnalyzeOne(ctx, id)
	}()
	response.Accepted(c, gin.H{"id": id})
}

func (h *Handler) analyzeAll(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	stats := h.svc.Stats()
	go h.svc.AnalyzeAll(ctx)
	response.Accepted(c, gin.H{"pending": stats[string(StatusPending)] + stats[string(StatusError)]})
}

func (h *Handler) commit(c *gin.Context) {
	count, err := h.svc.Commit(c.Request.Context(), h.downloadLink, func(_ context.Context, items []CommitItem) error {
		return h.commitFn(c, items)
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"committed": count})
}

func (h *Handler) writeQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "대기열에 없는 항목입니다")
	case errors.Is(err, ErrBusy):
		response.Conflict(c, "분석 중인 항목입니다")
	case errors.Is(err, ErrDuplicate):
		response.Conflict(c, "이미 대기열에 있는 파일입니다")
	case errors.Is(err, ErrUnsupported):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
