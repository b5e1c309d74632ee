package logic

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blues/agrofund/internal/chain"
	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/metrics"
	"github.com/blues/agrofund/internal/model"
	"github.com/blues/agrofund/internal/notify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

const deadlineLayout = "2006-01-02 15:04:05 UTC"

// CreateContributionInput 上报已广播的出资交易
type CreateContributionInput struct {
	ProjectId          int64            `json:"project_id"`
	Amount             decimal.Decimal  `json:"amount"`
	TxHash             string           `json:"tx_hash"`
	ContributorAddress string           `json:"contributor_address"`
	LocalCurrency      string           `json:"local_currency"`
	LocalAmount        *decimal.Decimal `json:"local_amount"`
	ExchangeRate       *decimal.Decimal `json:"exchange_rate"`
}

// FundingView 出资前展示的项目募资情况
type FundingView struct {
	ProjectId         int64           `json:"project_id"`
	BlockchainId      int64           `json:"blockchain_project_id"`
	FundingGoal       decimal.Decimal `json:"funding_goal"`
	CurrentFunding    decimal.Decimal `json:"current_funding"`
	ContributorsCount int64           `json:"contributors_count"`
	IsActive          bool            `json:"is_active"`
	IsCompleted       bool            `json:"is_completed"`
	FundsReleased     bool            `json:"funds_released"`
	Deadline          *time.Time      `json:"deadline,omitempty"`
	CanContribute     bool            `json:"can_contribute"`
	BlockingReason    string          `json:"blocking_reason,omitempty"`
	ChainAvailable    bool            `json:"chain_available"`
	ChainError        string          `json:"chain_error,omitempty"`
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	ProjectId         int64           `json:"project_id"`
	Funded            bool            `json:"funded"`
	TotalFunding      decimal.Decimal `json:"total_funding"`
	ContributorsCount int64           `json:"contributors_count"`
}

// ContributionLogic 出资记录与链上账本的对账
//
// 读路径和写路径的失败策略刻意不同:
// GetFundingView 在链不可达时降级为本地数据并乐观放行;
// CreateContribution 必须拿到新鲜的链上状态, 链不可达时直接失败。
// 两条路径分别由 fundingViewFromLocal 和 requireLiveProject 实现, 不要合并。
type ContributionLogic struct {
	db       *gorm.DB
	gateway  ChainGateway
	projects *ProjectLogic
	notifier notify.Notifier
	now      func() time.Time
}

func NewContributionLogic(db *gorm.DB, gateway ChainGateway, projects *ProjectLogic, notifier notify.Notifier) *ContributionLogic {
	return &ContributionLogic{
		db:       db,
		gateway:  gateway,
		projects: projects,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetFundingView 获取项目募资情况, 链不可达时降级
func (c *ContributionLogic) GetFundingView(ctx context.Context, projectId int64) (*FundingView, error) {
	project, err := c.projects.Get(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if project.BlockchainProjectId == nil {
		return nil, errs.Validation("project %d is not deployed on chain", projectId)
	}

	state, err := c.gateway.ReadProjectState(ctx, *project.BlockchainProjectId)
	if err != nil {
		return c.fundingViewFromLocal(ctx, project, err)
	}
	return c.fundingViewFromChain(ctx, project, state), nil
}

func (c *ContributionLogic) fundingViewFromChain(ctx context.Context, project *model.ProjectModel, state chain.ProjectState) *FundingView {
	count, err := c.gateway.ReadContributorCount(ctx, *project.BlockchainProjectId)
	if err != nil {
		logger.Warn("Failed to read contributor count of project %d, using cached value: %v", project.Id, err)
		count = project.ContributorsCount
	}

	canContribute, reason := contributionPolicy(project.Status, state, c.now())
	view := &FundingView{
		ProjectId:         project.Id,
		BlockchainId:      *project.BlockchainProjectId,
		FundingGoal:       state.Goal,
		CurrentFunding:    state.TotalFunding,
		ContributorsCount: count,
		IsActive:          state.IsActive,
		IsCompleted:       state.IsCompleted,
		FundsReleased:     state.FundsReleased,
		Deadline:          state.Deadline,
		CanContribute:     canContribute,
		BlockingReason:    reason,
		ChainAvailable:    true,
	}

	// 缓存刷新失败不影响读
	if !project.CurrentFunding.Equal(state.TotalFunding) || project.ContributorsCount != count {
		if err := c.projects.SyncFundingSnapshot(ctx, project.Id, state.TotalFunding, count); err != nil {
			logger.Warn("Failed to refresh funding snapshot of project %d: %v", project.Id, err)
		}
	}
	return view
}

// fundingViewFromLocal 链不可达时用本地已确认的出资记录计算, 并乐观允许出资
func (c *ContributionLogic) fundingViewFromLocal(ctx context.Context, project *model.ProjectModel, chainErr error) (*FundingView, error) {
	metrics.DegradedReads.Inc()
	logger.Warn("Chain unavailable for project %d, serving local funding snapshot: %v", project.Id, chainErr)

	totals, err := c.confirmedTotals(ctx, project.Id)
	if err != nil {
		return nil, err
	}

	advisory := errs.Message(chainErr)
	if advisory == "" {
		advisory = "chain gateway unavailable"
	}
	return &FundingView{
		ProjectId:         project.Id,
		BlockchainId:      *project.BlockchainProjectId,
		FundingGoal:       project.FundingGoal,
		CurrentFunding:    totals.Total,
		ContributorsCount: totals.Contributors,
		IsActive:          project.Status == model.ProjectStatusActive,
		CanContribute:     true,
		ChainAvailable:    false,
		ChainError:        advisory,
	}, nil
}

// contributionPolicy 按顺序检查, 第一个不满足的条件作为阻塞原因
func contributionPolicy(status model.ProjectStatus, state chain.ProjectState, now time.Time) (bool, string) {
	switch {
	case status != model.ProjectStatusActive:
		return false, fmt.Sprintf("project status is %q: only active projects accept contributions", status)
	case !state.IsActive:
		return false, "project has been deactivated or deadline passed on chain"
	case state.IsCompleted:
		return false, "project is fully funded: goal reached and funds released to the farmer"
	case state.FundsReleased:
		return false, "funds already released for this project"
	case state.DeadlinePassed(now):
		return false, fmt.Sprintf("project deadline passed on %s", state.Deadline.UTC().Format(deadlineLayout))
	}
	return true, ""
}

// CreateContribution 记录出资人钱包已经签名广播的交易
//
// 交易哈希是幂等键, 重复上报由唯一索引拦截并返回冲突。
func (c *ContributionLogic) CreateContribution(ctx context.Context, actor Actor, in CreateContributionInput) (*model.ContributionModel, error) {
	if actor.ID == 0 {
		return nil, errs.Authorization("an authenticated contributor is required")
	}
	txHash, err := normalizeTxHash(in.TxHash)
	if err != nil {
		return nil, err
	}
	if err := validateContributionInput(in.Amount, in.ContributorAddress); err != nil {
		return nil, err
	}

	project, _, err := c.requireLiveProject(ctx, in.ProjectId)
	if err != nil {
		metrics.Contributions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	baseUnits, err := c.gateway.BaseUnits(in.Amount)
	if err != nil {
		return nil, err
	}

	confirmedAt := c.now()
	contribution := &model.ContributionModel{
		ProjectId:          project.Id,
		ContributorId:      actor.ID,
		ContributorAddress: normalizeAddress(in.ContributorAddress),
		Amount:             in.Amount,
		AmountBaseUnits:    baseUnits,
		TxHash:             &txHash,
		Status:             model.ContributionStatusConfirmed,
		ConfirmedAt:        &confirmedAt,
	}
	applyLocalCurrency(contribution, in.LocalCurrency, in.LocalAmount, in.ExchangeRate)

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同一出资人的两笔首次出资并发时都可能读到 0, 人数会多计一次, 下一次对账按链上人数修正
		newContributor, err := isNewContributor(tx, project.Id, actor.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(contribution).Error; err != nil {
			return err
		}
		return applyContribution(tx, project.Id, contribution.Amount, newContributor)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.Contributions.WithLabelValues("conflict").Inc()
			return nil, errs.Conflict("transaction %s has already been recorded", txHash)
		}
		metrics.Contributions.WithLabelValues("error").Inc()
		return nil, errs.Internal(err, "failed to record contribution")
	}

	metrics.Contributions.WithLabelValues("confirmed").Inc()
	logger.Info("Contribution %d of %s recorded for project %d (tx: %s)", contribution.Id, contribution.Amount.String(), project.Id, txHash)
	c.afterConfirmed(ctx, contribution, actor)
	return contribution, nil
}

// requireLiveProject 写路径的前置检查, 全部是硬失败, 没有降级
func (c *ContributionLogic) requireLiveProject(ctx context.Context, projectId int64) (*model.ProjectModel, chain.ProjectState, error) {
	project, err := c.projects.Get(ctx, projectId)
	if err != nil {
		return nil, chain.ProjectState{}, err
	}
	if project.Status != model.ProjectStatusActive {
		return nil, chain.ProjectState{}, errs.Policy("project status is %q: only active projects accept contributions", project.Status)
	}
	if project.BlockchainProjectId == nil {
		return nil, chain.ProjectState{}, errs.Validation("project %d is not deployed on chain", projectId)
	}

	state, err := c.gateway.ReadProjectState(ctx, *project.BlockchainProjectId)
	if err != nil {
		return nil, chain.ProjectState{}, err
	}
	if !state.IsActive {
		return nil, chain.ProjectState{}, errs.Policy("project has been deactivated or deadline passed on chain")
	}
	return project, state, nil
}

// CreatePendingContribution 记录尚未拿到交易哈希的出资意向, 不计入募资总额
func (c *ContributionLogic) CreatePendingContribution(ctx context.Context, actor Actor, in CreateContributionInput) (*model.ContributionModel, error) {
	if actor.ID == 0 {
		return nil, errs.Authorization("an authenticated contributor is required")
	}
	if err := validateContributionInput(in.Amount, in.ContributorAddress); err != nil {
		return nil, err
	}

	project, err := c.projects.Get(ctx, in.ProjectId)
	if err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusActive {
		return nil, errs.Policy("project status is %q: only active projects accept contributions", project.Status)
	}
	if project.BlockchainProjectId == nil {
		return nil, errs.Validation("project %d is not deployed on chain", project.Id)
	}

	baseUnits, err := c.gateway.BaseUnits(in.Amount)
	if err != nil {
		return nil, err
	}
	contribution := &model.ContributionModel{
		ProjectId:          project.Id,
		ContributorId:      actor.ID,
		ContributorAddress: normalizeAddress(in.ContributorAddress),
		Amount:             in.Amount,
		AmountBaseUnits:    baseUnits,
		Status:             model.ContributionStatusPending,
	}
	applyLocalCurrency(contribution, in.LocalCurrency, in.LocalAmount, in.ExchangeRate)

	if err := c.db.WithContext(ctx).Create(contribution).Error; err != nil {
		return nil, errs.Internal(err, "failed to record pending contribution")
	}
	return contribution, nil
}

// ConfirmContribution 为待确认的出资补充交易哈希
func (c *ContributionLogic) ConfirmContribution(ctx context.Context, actor Actor, id int64, txHash string) (*model.ContributionModel, error) {
	normalized, err := normalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}

	contribution, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != contribution.ContributorId && !actor.IsAdmin() {
		return nil, errs.Authorization("only the contributor can confirm contribution %d", id)
	}
	switch contribution.Status {
	case model.ContributionStatusConfirmed:
		return nil, errs.Conflict("contribution %d is already confirmed", id)
	case model.ContributionStatusFailed:
		return nil, errs.Policy("contribution %d has failed and cannot be confirmed", id)
	}

	// 记账前重新确认项目在本地和链上都还在募资
	if _, _, err := c.requireLiveProject(ctx, contribution.ProjectId); err != nil {
		return nil, err
	}

	confirmedAt := c.now()
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		newContributor, err := isNewContributor(tx, contribution.ProjectId, contribution.ContributorId)
		if err != nil {
			return err
		}
		res := tx.Model(&model.ContributionModel{}).
			Where("id = ? AND status = ?", id, model.ContributionStatusPending).
			Updates(map[string]interface{}{
				"tx_hash":      normalized,
				"status":       model.ContributionStatusConfirmed,
				"confirmed_at": confirmedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Conflict("contribution %d is already confirmed", id)
		}
		return applyContribution(tx, contribution.ProjectId, contribution.Amount, newContributor)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("transaction %s has already been recorded", normalized)
		}
		if errs.KindOf(err) != errs.KindInternal {
			return nil, err
		}
		return nil, errs.Internal(err, "failed to confirm contribution %d", id)
	}

	contribution.TxHash = &normalized
	contribution.Status = model.ContributionStatusConfirmed
	contribution.ConfirmedAt = &confirmedAt
	metrics.Contributions.WithLabelValues("confirmed").Inc()
	c.afterConfirmed(ctx, contribution, actor)
	return contribution, nil
}

// Reconcile 用链上状态刷新本地缓存, 链上已筹满或已放款时把项目标记为 funded
func (c *ContributionLogic) Reconcile(ctx context.Context, projectId int64) (*ReconcileResult, error) {
	project, err := c.projects.Get(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if project.BlockchainProjectId == nil {
		return nil, errs.Validation("project %d is not deployed on chain", projectId)
	}

	state, err := c.gateway.ReadProjectState(ctx, *project.BlockchainProjectId)
	if err != nil {
		return nil, err
	}
	count, err := c.gateway.ReadContributorCount(ctx, *project.BlockchainProjectId)
	if err != nil {
		logger.Warn("Failed to read contributor count of project %d, using cached value: %v", projectId, err)
		count = project.ContributorsCount
	}

	result := &ReconcileResult{ProjectId: projectId, TotalFunding: state.TotalFunding, ContributorsCount: count}
	if project.Status == model.ProjectStatusActive && (state.IsCompleted || state.FundsReleased) {
		funded, err := c.projects.MarkFunded(ctx, projectId)
		if err != nil {
			return nil, err
		}
		result.Funded = funded
	}

	if err := c.projects.SyncFundingSnapshot(ctx, projectId, state.TotalFunding, count); err != nil {
		return nil, err
	}
	return result, nil
}

// ReconcileActive 对所有已上链的 active 项目对账, 返回标记为 funded 的数量
func (c *ContributionLogic) ReconcileActive(ctx context.Context, limit int) (int, error) {
	var ids []int64
	err := c.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("status = ? AND blockchain_status = ?", model.ProjectStatusActive, model.BlockchainStatusCreated).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, errs.Internal(err, "failed to list active projects")
	}

	funded := 0
	for _, id := range ids {
		result, err := c.Reconcile(ctx, id)
		if err != nil {
			logger.Warn("Reconcile of project %d failed: %v", id, err)
			continue
		}
		if result.Funded {
			funded++
		}
	}
	return funded, nil
}

// Get 获取出资记录
func (c *ContributionLogic) Get(ctx context.Context, id int64) (*model.ContributionModel, error) {
	var contribution model.ContributionModel
	if err := c.db.WithContext(ctx).First(&contribution, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("contribution %d not found", id)
		}
		return nil, errs.Internal(err, "failed to load contribution %d", id)
	}
	return &contribution, nil
}

// GetByTxHash 根据交易哈希获取出资记录
func (c *ContributionLogic) GetByTxHash(ctx context.Context, txHash string) (*model.ContributionModel, error) {
	normalized, err := normalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}
	var contribution model.ContributionModel
	if err := c.db.WithContext(ctx).Where("tx_hash = ?", normalized).First(&contribution).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("no contribution recorded for transaction %s", normalized)
		}
		return nil, errs.Internal(err, "failed to load contribution")
	}
	return &contribution, nil
}

// ListByProject 获取项目的出资记录
func (c *ContributionLogic) ListByProject(ctx context.Context, projectId int64, page, pageSize int) ([]model.ContributionModel, int64, error) {
	return c.list(ctx, c.db.WithContext(ctx).Where("project_id = ?", projectId), page, pageSize)
}

// ListByContributor 获取出资人的出资记录
func (c *ContributionLogic) ListByContributor(ctx context.Context, contributorId int64, page, pageSize int) ([]model.ContributionModel, int64, error) {
	return c.list(ctx, c.db.WithContext(ctx).Where("contributor_id = ?", contributorId), page, pageSize)
}

func (c *ContributionLogic) list(ctx context.Context, query *gorm.DB, page, pageSize int) ([]model.ContributionModel, int64, error) {
	var contributions []model.ContributionModel
	var total int64

	query = query.Model(&model.ContributionModel{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Internal(err, "failed to count contributions")
	}

	page, pageSize = normalizePage(page, pageSize)
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&contributions).Error; err != nil {
		return nil, 0, errs.Internal(err, "failed to list contributions")
	}
	return contributions, total, nil
}

type fundingTotals struct {
	Total        decimal.Decimal
	Contributors int64
}

func (c *ContributionLogic) confirmedTotals(ctx context.Context, projectId int64) (fundingTotals, error) {
	return confirmedTotals(c.db.WithContext(ctx), projectId)
}

// confirmedTotals 本地已确认出资的汇总
func confirmedTotals(db *gorm.DB, projectId int64) (fundingTotals, error) {
	var totals fundingTotals
	err := db.Model(&model.ContributionModel{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(DISTINCT contributor_id) AS contributors").
		Where("project_id = ? AND status = ?", projectId, model.ContributionStatusConfirmed).
		Scan(&totals).Error
	if err != nil {
		return fundingTotals{}, errs.Internal(err, "failed to sum contributions of project %d", projectId)
	}
	return totals, nil
}

// afterConfirmed 记账后的通知和对账, 都是尽力而为
func (c *ContributionLogic) afterConfirmed(ctx context.Context, contribution *model.ContributionModel, actor Actor) {
	err := c.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventContributionConfirmed,
		ProjectId: contribution.ProjectId,
		ActorId:   actor.ID,
		Data: map[string]interface{}{
			"contribution_id": contribution.Id,
			"amount":          contribution.Amount.String(),
		},
		OccurredAt: c.now(),
	})
	if err != nil {
		logger.Warn("Failed to send contribution notification for project %d: %v", contribution.ProjectId, err)
	}

	if _, err := c.Reconcile(ctx, contribution.ProjectId); err != nil {
		logger.Warn("Reconcile after contribution %d failed: %v", contribution.Id, err)
	}
}

// isNewContributor 出资人在该项目是否还没有已确认的出资
func isNewContributor(tx *gorm.DB, projectId, contributorId int64) (bool, error) {
	var count int64
	err := tx.Model(&model.ContributionModel{}).
		Where("project_id = ? AND contributor_id = ? AND status = ?", projectId, contributorId, model.ContributionStatusConfirmed).
		Count(&count).Error
	return count == 0, err
}

func normalizeTxHash(txHash string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(txHash))
	if normalized == "" {
		return "", errs.Validation("transaction hash is required")
	}
	if !txHashPattern.MatchString(normalized) {
		return "", errs.Validation("transaction hash %q must be 0x followed by 64 hex characters", txHash)
	}
	return normalized, nil
}

func validateContributionInput(amount decimal.Decimal, address string) error {
	if !amount.IsPositive() {
		return errs.Validation("contribution amount must be greater than zero")
	}
	if address != "" && !common.IsHexAddress(address) {
		return errs.Validation("invalid contributor address %q", address)
	}
	return nil
}

func normalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	return common.HexToAddress(address).Hex()
}

func applyLocalCurrency(c *model.ContributionModel, currency string, amount, rate *decimal.Decimal) {
	if currency == "" {
		return
	}
	c.LocalCurrency = strings.ToUpper(currency)
	if amount != nil {
		c.LocalAmount = decimal.NewNullDecimal(*amount)
	}
	if rate != nil {
		c.ExchangeRate = decimal.NewNullDecimal(*rate)
	}
}
