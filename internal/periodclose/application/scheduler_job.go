package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/fundadmin/internal/periodclose/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"golang.org/x/sync/errgroup"
)

// CloseSchedulerJob 定期扫描全部基金，为刚结束的期间触发结算批次。
// 已完成或在途的 (基金, 期间) 由认领行挡下，重复触发是空操作。
type CloseSchedulerJob struct {
	svc       *CloseService
	preflight domain.Preflight
	logger    *slog.Logger
	interval  time.Duration
	// 并行触发的基金数上限
	concurrency int
}

// NewCloseSchedulerJob 创建结算调度任务。
func NewCloseSchedulerJob(svc *CloseService, preflight domain.Preflight, logger *slog.Logger) *CloseSchedulerJob {
	return &CloseSchedulerJob{
		svc:         svc,
		preflight:   preflight,
		logger:      logger,
		interval:    1 * time.Hour,
		concurrency: 4,
	}
}

// Start 启动调度循环，ctx 取消时退出。
func (j *CloseSchedulerJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("period close scheduler started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.scan(ctx)
		}
	}
}

func (j *CloseSchedulerJob) scan(ctx context.Context) {
	schedules, err := j.preflight.ListFundSchedules(ctx)
	if err != nil {
		j.logger.Error("failed to list fund schedules", "error", err)
		return
	}

	today := period.Day(time.Now())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, schedule := range schedules {
		g.Go(func() error {
			// 今天所在期间的上一期刚刚结束
			p := period.Containing(schedule.Frequency, today).Prior(schedule.Frequency)
			run, err := j.svc.Run(gctx, schedule.FundID, p)
			switch {
			case finerrors.IsConflict(err):
				// 已认领，正常
			case finerrors.IsPrecondition(err):
				j.logger.Debug("period close not ready",
					"fund_id", schedule.FundID, "period", p.String(), "reason", err.Error())
			case err != nil:
				j.logger.Error("period close run failed to start",
					"fund_id", schedule.FundID, "period", p.String(), "error", err)
			default:
				j.logger.Info("period close run triggered",
					"fund_id", schedule.FundID, "run_id", run.RunID, "status", run.Status.String())
			}
			return nil
		})
	}
	_ = g.Wait()
}
