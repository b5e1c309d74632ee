package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/blues/agrofund/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	EventProjectSubmitted        = "project.submitted"
	EventProjectVerified         = "project.verified"
	EventProjectRejected         = "project.rejected"
	EventProjectDeploymentFailed = "project.deployment_failed"
	EventProjectFunded           = "project.funded"
	EventProjectClosed           = "project.closed"
	EventContributionConfirmed   = "contribution.confirmed"
)

// Event 通知事件
type Event struct {
	Type       string                 `json:"type"`
	ProjectId  int64                  `json:"project_id,omitempty"`
	ActorId    int64                  `json:"actor_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Notifier 通知协作方, 调用方只记录错误, 从不因通知失败而中断业务
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close()
}

// LogNotifier 只写日志, 未配置webhook时使用
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	logger.Info("Notification %s (project: %d, actor: %d)", event.Type, event.ProjectId, event.ActorId)
	return nil
}

func (LogNotifier) Close() {}

// WebhookNotifier 通过协程池异步投递webhook
type WebhookNotifier struct {
	client  *resty.Client
	pool    *ants.Pool
	url     string
	timeout time.Duration
}

// NewWebhookNotifier 创建webhook通知器
func NewWebhookNotifier(url string, timeout time.Duration, poolSize int) (*WebhookNotifier, error) {
	if poolSize <= 0 {
		poolSize = 16
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	// 池满时直接丢弃通知, 不阻塞业务请求
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create notify pool: %w", err)
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{client: client, pool: pool, url: url, timeout: timeout}, nil
}

// Notify 提交投递任务后立即返回
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	// 请求结束后仍要继续投递, 不使用调用方的ctx
	return n.pool.Submit(func() {
		n.deliver(event)
	})
}

func (n *WebhookNotifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout*3)
	defer cancel()

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.url)
	if err != nil {
		logger.Warn("Failed to deliver notification %s for project %d: %v", event.Type, event.ProjectId, err)
		return
	}
	if resp.IsError() {
		logger.Warn("Notification %s for project %d rejected: %s", event.Type, event.ProjectId, resp.Status())
		return
	}
	logger.Debug("Delivered notification %s for project %d", event.Type, event.ProjectId)
}

// Close 等待未完成的投递后释放协程池
func (n *WebhookNotifier) Close() {
	if err := n.pool.ReleaseTimeout(n.timeout * 3); err != nil {
		logger.Warn("Notify pool release timed out: %v", err)
	}
}
