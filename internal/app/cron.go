package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/forgespec/core/internal/config"
	"github.com/forgespec/core/internal/modules/backup"
	"github.com/forgespec/core/internal/modules/intake"
	pkgcron "github.com/forgespec/core/internal/pkg/cron"
)

// registerCronJobs registers the scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, backupSvc *backup.Service, intakeSvc *intake.Service, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	if cfg.Backup.Enable {
		interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		sched.Register(pkgcron.Job{
			Name:        "auto_backup",
			Description: "카탈로그와 원본 파일을 주기적으로 백업",
			Interval:    interval,
			Fn: func(ctx context.Context) error {
				artifact, err := backupSvc.Create(ctx)
				if err != nil {
					cronLogger.Warn("자동 백업 실패", zap.Error(err))
					return err
				}
				cronLogger.Info("자동 백업 완료", zap.String("file", artifact.Filename))
				return nil
			},
		})
	}

	sched.Register(pkgcron.Job{
		Name:        "cleanup_staging",
		Description: "대기열에 없는 스테이징 파일 정리",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			return intakeSvc.CleanupStaging(ctx)
		},
	})
}
