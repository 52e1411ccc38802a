package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgespec/core/internal/middleware"
	"github.com/forgespec/core/internal/modules/backup"
	"github.com/forgespec/core/internal/modules/catalog"
	"github.com/forgespec/core/internal/modules/gateway"
	"github.com/forgespec/core/internal/modules/intake"
	pkgredis "github.com/forgespec/core/internal/pkg/redis"
	"github.com/forgespec/core/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	authMW := middleware.Auth(a.cfg.AuthToken)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "forgespec-core",
		"version": "1.0.0",
	}

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.OptionalAuth(a.cfg.AuthToken))
	r.Use(middleware.RateLimit(rc.Raw()))
	r.Use(middleware.Idempotence(rc.Raw()))

	// WebSocket gateway lives at the root, like the socket.io client expects.
	root := r.Group("")
	gateway.RegisterRoutes(root, a.hub, a.intakeSvc.Stats)

	api := r.Group(apiPrefix)

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	// Upload queue
	downloadLink := func(id string) string {
		return apiPrefix + "/records/" + id + "/download"
	}
	commitFn := func(c *gin.Context, items []intake.CommitItem) error {
		entries := make([]catalog.Entry, 0, len(items))
		for _, item := range items {
			entries = append(entries, catalog.Entry{Record: item.Record, Data: item.Data})
		}
		return a.catalogSvc.Commit(context.WithoutCancel(c.Request.Context()), entries)
	}
	intake.NewHandler(a.intakeSvc, commitFn, downloadLink).RegisterRoutes(api, authMW)

	// Catalog
	catalog.NewHandler(a.catalogSvc).RegisterRoutes(api, authMW)

	// Backups
	backup.NewHandler(a.backupSvc).RegisterRoutes(api, authMW)

	// Scheduled jobs (admin)
	a.registerCronRoutes(api, authMW)
}

func (a *App) registerCronRoutes(api *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := api.Group("/cron", authMW)

	g.GET("", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	g.POST("/:name/run", func(c *gin.Context) {
		name := c.Param("name")
		if err := a.sched.Run(context.WithoutCancel(c.Request.Context()), name); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.Accepted(c, gin.H{"name": name})
	})
}
