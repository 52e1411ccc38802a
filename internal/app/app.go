// Package app wires configuration, storage, services and HTTP routes into
// one runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/forgespec/core/internal/config"
	"github.com/forgespec/core/internal/database"
	"github.com/forgespec/core/internal/middleware"
	"github.com/forgespec/core/internal/modules/analysis"
	"github.com/forgespec/core/internal/modules/backup"
	"github.com/forgespec/core/internal/modules/blob"
	"github.com/forgespec/core/internal/modules/catalog"
	"github.com/forgespec/core/internal/modules/gateway"
	"github.com/forgespec/core/internal/modules/intake"
	pkgcron "github.com/forgespec/core/internal/pkg/cron"
	pkgredis "github.com/forgespec/core/internal/pkg/redis"
)

var processStart = time.Now()

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
	hub    *gateway.Hub

	db         *gorm.DB
	intakeSvc  *intake.Service
	catalogSvc *catalog.Service
	backupSvc  *backup.Service
}

// New initializes the application: config → storage → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	rc, err := pkgredis.Connect(cfg.Redis.URLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var db *gorm.DB
	var repo catalog.Repo
	if cfg.Catalog.Driver == "database" {
		db, err = database.Connect(cfg)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("database: %w", err)
		}
		repo = catalog.NewDatabaseRepo(db)
	} else {
		repo = catalog.NewRedisRepo(rc)
	}

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("blob store: %w", err)
	}

	hub := gateway.NewHub(rc, logger.Named("gateway"))
	go hub.Run(ctx)

	catalogSvc, err := catalog.NewService(ctx, repo, blobs, hub, logger.Named("catalog"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	analyzer := analysis.NewService(cfg.AI)
	intakeSvc, err := intake.NewService(
		analyzer,
		cfg.StagingDir(),
		cfg.Intake.AllowedExtensions,
		cfg.Intake.Concurrency,
		hub,
		logger.Named("intake"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("intake: %w", err)
	}

	backupSvc := backup.NewService(catalogSvc, blobs, cfg.BackupDir(), hub, logger.Named("backup"))

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	sched := pkgcron.New()
	registerCronJobs(sched, cfg, backupSvc, intakeSvc, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:        cfg,
		router:     router,
		logger:     logger,
		cancel:     cancel,
		sched:      sched,
		hub:        hub,
		db:         db,
		intakeSvc:  intakeSvc,
		catalogSvc: catalogSvc,
		backupSvc:  backupSvc,
	}
	app.registerRoutes(rc)

	return app, nil
}

func buildBlobStore(ctx context.Context, cfg *config.AppConfig) (blob.Store, error) {
	if cfg.Blob.Driver == "s3" {
		return blob.NewS3(ctx, cfg.Blob.S3)
	}
	return blob.NewLocal(cfg.BlobDir())
}

func buildCORSConfig(cfg *config.AppConfig) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, origin)
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsConfig
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }
