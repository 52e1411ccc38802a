package backup

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/forgespec/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/backup", authMW)

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:filename", h.download)
	g.POST("/restore", h.restore)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.svc.List())
}

func (h *Handler) create(c *gin.Context) {
	artifact, err := h.svc.Create(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, artifact)
}

func (h *Handler) download(c *gin.Context) {
	data, err := h.svc.ReadArchive(c.Param("filename"))
	if err != nil {
		response.NotFoundMsg(c, "백업 파일을 찾을 수 없습니다")
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(c.Param("filename")))
	c.Data(http.StatusOK, "application/zip", data)
}

// restore takes either an uploaded archive ("file" part) or the name of an
// existing archive in the backup directory ("filename" form value).
func (h *Handler) restore(c *gin.Context) {
	var data []byte
	var err error

	switch {
	case fileUploaded(c):
		file, ferr := c.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, ferr.Error())
			return
		}
		f, oerr := file.Open()
		if oerr != nil {
			response.BadRequest(c, oerr.Error())
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
	case c.PostForm("filename") != "":
		data, err = h.svc.ReadArchive(c.PostForm("filename"))
	default:
		response.BadRequest(c, "복원할 백업 파일이 필요합니다")
		return
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Restore(c.Request.Context(), data)
	if err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, result)
}

func fileUploaded(c *gin.Context) bool {
	_, err := c.FormFile("file")
	return err == nil
}
