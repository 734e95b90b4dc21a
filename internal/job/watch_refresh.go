package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creamcroissant/orderdesk/internal/service"
)

// WatchRefreshJob refetches every watched order.
type WatchRefreshJob struct {
	Watches service.WatchService
	Logger  *slog.Logger
}

func NewWatchRefreshJob(watches service.WatchService, logger *slog.Logger) *WatchRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchRefreshJob{Watches: watches, Logger: logger}
}

func (j *WatchRefreshJob) Name() string {
	return "watch.refresh"
}

func (j *WatchRefreshJob) Run(ctx context.Context) error {
	if j == nil || j.Watches == nil {
		return fmt.Errorf("watch refresh job dependencies not configured / 关注列表刷新任务依赖未配置")
	}
	result, err := j.Watches.RefreshAll(ctx)
	if err != nil {
		return fmt.Errorf("watch refresh job: %w", err)
	}
	if result.Changed > 0 || result.Dropped > 0 || result.Failed > 0 {
		j.Logger.Info("watched orders refreshed",
			"checked", result.Checked,
			"changed", result.Changed,
			"dropped", result.Dropped,
			"failed", result.Failed,
		)
	}
	return nil
}
