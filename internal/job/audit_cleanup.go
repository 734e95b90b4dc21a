package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creamcroissant/orderdesk/internal/service"
)

// AuditCleanupJob prunes transition audit entries past retention.
type AuditCleanupJob struct {
	Audits    service.AuditService
	Retention time.Duration
	Logger    *slog.Logger
}

// NewAuditCleanupJob creates the cleanup job. A non-positive retention keeps everything.
func NewAuditCleanupJob(audits service.AuditService, retention time.Duration, logger *slog.Logger) *AuditCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditCleanupJob{Audits: audits, Retention: retention, Logger: logger}
}

func (j *AuditCleanupJob) Name() string {
	return "audit.cleanup"
}

func (j *AuditCleanupJob) Run(ctx context.Context) error {
	if j == nil || j.Audits == nil {
		return fmt.Errorf("audit cleanup job dependencies not configured / 审计清理任务依赖未配置")
	}
	deleted, err := j.Audits.Cleanup(ctx, j.Retention)
	if err != nil {
		return fmt.Errorf("audit cleanup job: %w", err)
	}
	if deleted > 0 {
		j.Logger.Info("cleaned up transition audits", "deleted_rows", deleted, "retention", j.Retention)
	}
	return nil
}
