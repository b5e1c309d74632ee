package task

import (
	"context"
	"time"

	"github.com/blues/agrofund/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// FundingReconciler 用链上状态对账 active 项目
type FundingReconciler interface {
	ReconcileActive(ctx context.Context, limit int) (int, error)
}

// FundingReconcileJob 把链上已筹满或已放款的项目标记为 funded
type FundingReconcileJob struct {
	reconciler FundingReconciler
	interval   time.Duration
	batch      int
	timeout    time.Duration
}

func NewFundingReconcileJob(reconciler FundingReconciler, interval time.Duration, batch int) *FundingReconcileJob {
	return &FundingReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		batch:      batch,
		timeout:    jobTimeout(interval),
	}
}

// GetName 获取任务名称
func (j *FundingReconcileJob) GetName() string {
	return "funding_reconcile"
}

// GetSchedule 获取调度配置
func (j *FundingReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *FundingReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	funded, err := j.reconciler.ReconcileActive(ctx, j.batch)
	if err != nil {
		logger.Error("Funding reconcile task failed: %v", err)
		return
	}
	if funded > 0 {
		logger.Info("Funding reconcile task completed. %d projects fully funded", funded)
	}
}
