package task

import (
	"context"
	"time"

	"github.com/blues/agrofund/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// DeploymentRetrier 重试部署失败的项目
type DeploymentRetrier interface {
	RetryFailedDeployments(ctx context.Context, limit int) (int, error)
}

// DeploymentRetryJob 重新部署审核通过但上链失败的项目
type DeploymentRetryJob struct {
	retrier  DeploymentRetrier
	interval time.Duration
	batch    int
	timeout  time.Duration
}

// NewDeploymentRetryJob 创建部署重试任务
func NewDeploymentRetryJob(retrier DeploymentRetrier, interval time.Duration, batch int) *DeploymentRetryJob {
	return &DeploymentRetryJob{
		retrier:  retrier,
		interval: interval,
		batch:    batch,
		timeout:  jobTimeout(interval),
	}
}

// GetName 获取任务名称
func (j *DeploymentRetryJob) GetName() string {
	return "deployment_retry"
}

// GetSchedule 获取调度配置
func (j *DeploymentRetryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *DeploymentRetryJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	created, err := j.retrier.RetryFailedDeployments(ctx, j.batch)
	if err != nil {
		logger.Error("Deployment retry task failed: %v", err)
		return
	}
	if created > 0 {
		logger.Info("Deployment retry task completed. Deployed %d projects", created)
	}
}

// jobTimeout 单轮任务不超过调度间隔
func jobTimeout(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Minute
	}
	return interval
}
