package catalog

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgespec/core/internal/pkg/pagination"
	"github.com/forgespec/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/records")

	g.GET("", h.list)
	g.GET("/export", authMW, h.export)
	g.POST("/import", authMW, h.importRecords)
	g.GET("/:id", h.get)
	g.GET("/:id/download", h.download)
	g.DELETE("/:id", authMW, h.remove)
	g.POST("/batch-delete", authMW, h.batchDelete)
}

func (h *Handler) list(c *gin.Context) {
	records := h.svc.List(c.Query("search"), ParseSort(c.Query("sort")))
	page, pag := pagination.PageSlice(records, pagination.FromContext(c))
	response.Paged(c, page, pag)
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.svc.Get(c.Param("id"))
	if err != nil {
		response.NotFoundMsg(c, "등록된 시방서가 없습니다")
		return
	}
	response.OK(c, rec)
}

func (h *Handler) download(c *gin.Context) {
	rec, rc, fallback, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFoundMsg(c, "등록된 시방서가 없습니다")
			return
		}
		response.InternalError(c, err)
		return
	}
	defer rc.Close()

	fileName := rec.FileName
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if fallback {
		fileName += ".txt"
		contentType = "text/plain; charset=utf-8"
		c.Header("X-Metadata-Fallback", "1")
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(fileName)))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFoundMsg(c, "등록된 시방서가 없습니다")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

type batchDeleteDTO struct {
	IDs     []string `json:"ids"`
	Confirm bool     `json:"confirm"`
}

// batchDelete requires an explicit confirm flag so a fat-fingered request
// cannot wipe records.
func (h *Handler) batchDelete(c *gin.Context) {
	var dto batchDeleteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(dto.IDs) == 0 {
		response.BadRequest(c, "ids is required")
		return
	}
	if !dto.Confirm {
		response.BadRequest(c, "삭제하려면 confirm을 true로 보내야 합니다")
		return
	}

	deleted, err := h.svc.DeleteMany(c.Request.Context(), dto.IDs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"requested": len(dto.IDs), "deleted": deleted})
}

func (h *Handler) export(c *gin.Context) {
	data, err := h.svc.Export()
	if err != nil {
		response.InternalError(c, err)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", ExportFilename(time.Now())))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) importRecords(c *gin.Context) {
	var data []byte
	var err error

	if file, ferr := c.FormFile("file"); ferr == nil {
		f, oerr := file.Open()
		if oerr != nil {
			response.BadRequest(c, oerr.Error())
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	added, err := h.svc.Import(c.Request.Context(), data)
	if err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{"imported": added, "total": h.svc.Count()})
}
