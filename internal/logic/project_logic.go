package logic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blues/agrofund/internal/chain"
	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/metrics"
	"github.com/blues/agrofund/internal/model"
	"github.com/blues/agrofund/internal/notify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 审核员可以执行 verify/reject 的状态
var reviewableStatuses = []model.ProjectStatus{
	model.ProjectStatusSubmitted,
	model.ProjectStatusUnderReview,
	model.ProjectStatusVerified,
}

// 可以发起上链的部署状态, pending 表示已有审核员在处理
var claimableChainStatuses = []model.BlockchainStatus{
	model.BlockchainStatusNotCreated,
	model.BlockchainStatusFailed,
}

// 部署抢占的默认租期
const defaultClaimTimeout = 5 * time.Minute

// 抢占条件: 可部署状态, 或者 pending 但租期已过(进程在部署中途退出)
const claimableCondition = "(blockchain_status IN ? OR (blockchain_status = ? AND (blockchain_claimed_at IS NULL OR blockchain_claimed_at < ?)))"

// CreateProjectInput 创建项目参数
type CreateProjectInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Location     string          `json:"location"`
	FundingGoal  decimal.Decimal `json:"funding_goal"`
	TimelineDays int64           `json:"timeline_days"`
}

// UpdateProjectInput 修改项目参数, nil 表示不修改
type UpdateProjectInput struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Category     *string          `json:"category"`
	Location     *string          `json:"location"`
	FundingGoal  *decimal.Decimal `json:"funding_goal"`
	TimelineDays *int64           `json:"timeline_days"`
}

// ProjectFilter 项目列表过滤条件
type ProjectFilter struct {
	Status     string
	Department string
	Category   string
	OwnerId    int64
	Page       int
	PageSize   int
}

// ProjectLogic 项目生命周期
type ProjectLogic struct {
	db           *gorm.DB
	gateway      ChainGateway
	departments  *DepartmentLogic
	users        *UserLogic
	notifier     notify.Notifier
	minGoal      decimal.Decimal
	claimTimeout time.Duration
	now          func() time.Time
}

// NewProjectLogic 创建项目业务逻辑
func NewProjectLogic(db *gorm.DB, gateway ChainGateway, departments *DepartmentLogic, users *UserLogic, notifier notify.Notifier, minGoal decimal.Decimal) *ProjectLogic {
	return &ProjectLogic{
		db:           db,
		gateway:      gateway,
		departments:  departments,
		users:        users,
		notifier:     notifier,
		minGoal:      minGoal,
		claimTimeout: defaultClaimTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClaimTimeout 设置部署抢占的租期, 应大于一次部署的超时时间
func (p *ProjectLogic) SetClaimTimeout(timeout time.Duration) {
	if timeout > 0 {
		p.claimTimeout = timeout
	}
}

// Create 创建项目
func (p *ProjectLogic) Create(ctx context.Context, actor Actor, in CreateProjectInput) (*model.ProjectModel, error) {
	if actor.Role != model.RoleFarmer && !actor.IsAdmin() {
		return nil, errs.Authorization("only farmers can create projects")
	}
	if err := p.validateProject(in.Title, in.Category, in.FundingGoal, in.TimelineDays); err != nil {
		return nil, err
	}

	owner, err := p.users.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if owner.WalletAddress == nil || strings.TrimSpace(*owner.WalletAddress) == "" {
		return nil, errs.Validation("a payout wallet address is required before creating a project")
	}
	if !common.IsHexAddress(*owner.WalletAddress) {
		return nil, errs.Validation("payout wallet address %q is invalid", *owner.WalletAddress)
	}

	project := &model.ProjectModel{
		Slug:             slugify(in.Title),
		OwnerId:          owner.Id,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Category:         strings.ToLower(strings.TrimSpace(in.Category)),
		Location:         in.Location,
		TimelineDays:     in.TimelineDays,
		FundingGoal:      in.FundingGoal,
		CurrentFunding:   decimal.Zero,
		Status:           model.ProjectStatusSubmitted,
		BlockchainStatus: model.BlockchainStatusNotCreated,
		DueDiligence: model.DueDiligence{
			Documents: []string{},
			Status:    model.DueDiligencePending,
		},
	}
	if err := p.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, errs.Internal(err, "failed to create project")
	}

	// 分配部门失败不影响提交
	result := p.departments.AutoCategorize(ctx, project.Id, project.Category)
	if result.Success {
		project.Department = result.Department
	}

	logger.Info("Project %d (%s) submitted by user %d", project.Id, project.Slug, owner.Id)
	p.notify(ctx, notify.EventProjectSubmitted, project.Id, actor.ID, map[string]interface{}{
		"department": result.Department,
	})
	return project, nil
}

// Update 修改项目, 只有所有者可以在 submitted 状态下修改
func (p *ProjectLogic) Update(ctx context.Context, actor Actor, id int64, in UpdateProjectInput) (*model.ProjectModel, error) {
	project, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.authorizeOwner(actor, project); err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusSubmitted {
		return nil, errs.Policy("project can only be updated while submitted, current status is %q", project.Status)
	}

	if in.Title != nil {
		project.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Category != nil {
		project.Category = strings.ToLower(strings.TrimSpace(*in.Category))
		project.Department = Categorize(project.Category)
	}
	if in.Location != nil {
		project.Location = *in.Location
	}
	if in.FundingGoal != nil {
		project.FundingGoal = *in.FundingGoal
	}
	if in.TimelineDays != nil {
		project.TimelineDays = *in.TimelineDays
	}
	if err := p.validateProject(project.Title, project.Category, project.FundingGoal, project.TimelineDays); err != nil {
		return nil, err
	}

	ok, err := p.updateWhere(ctx, id, []model.ProjectStatus{model.ProjectStatusSubmitted}, project,
		"title", "description", "category", "department", "location", "funding_goal", "timeline_days")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Policy("project %d is no longer submitted", id)
	}
	return p.Get(ctx, id)
}

// Remove 删除项目, 规则同 Update
func (p *ProjectLogic) Remove(ctx context.Context, actor Actor, id int64) error {
	project, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := p.authorizeOwner(actor, project); err != nil {
		return err
	}
	if project.Status != model.ProjectStatusSubmitted {
		return errs.Policy("project can only be removed while submitted, current status is %q", project.Status)
	}

	res := p.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.ProjectStatusSubmitted).
		Delete(&model.ProjectModel{})
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to remove project %d", id)
	}
	if res.RowsAffected == 0 {
		return errs.Policy("project %d is no longer submitted", id)
	}
	logger.Info("Project %d removed by user %d", id, actor.ID)
	return nil
}

// Get 获取项目详情
func (p *ProjectLogic) Get(ctx context.Context, id int64) (*model.ProjectModel, error) {
	var project model.ProjectModel
	if err := p.db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("project %d not found", id)
		}
		return nil, errs.Internal(err, "failed to load project %d", id)
	}
	return &project, nil
}

// GetBySlug 根据slug获取项目
func (p *ProjectLogic) GetBySlug(ctx context.Context, slug string) (*model.ProjectModel, error) {
	var project model.ProjectModel
	if err := p.db.WithContext(ctx).Where("slug = ?", slug).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("project %q not found", slug)
		}
		return nil, errs.Internal(err, "failed to load project %q", slug)
	}
	return &project, nil
}

// List 获取项目列表
func (p *ProjectLogic) List(ctx context.Context, filter ProjectFilter) ([]model.ProjectModel, int64, error) {
	var projects []model.ProjectModel
	var total int64

	query := p.db.WithContext(ctx).Model(&model.ProjectModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		query = query.Where("department = ?", strings.ToUpper(filter.Department))
	}
	if filter.Category != "" {
		query = query.Where("category = ?", strings.ToLower(filter.Category))
	}
	if filter.OwnerId > 0 {
		query = query.Where("owner_id = ?", filter.OwnerId)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Internal(err, "failed to count projects")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&projects).Error; err != nil {
		return nil, 0, errs.Internal(err, "failed to list projects")
	}
	return projects, total, nil
}

// StartDueDiligence 开始尽职调查
func (p *ProjectLogic) StartDueDiligence(ctx context.Context, actor Actor, id int64, notes string) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusSubmitted {
		return nil, errs.Policy("due diligence can only start on submitted projects, current status is %q", project.Status)
	}

	reviewer := actor.ID
	project.Status = model.ProjectStatusUnderReview
	project.DueDiligence.ReviewerId = &reviewer
	project.DueDiligence.Status = model.DueDiligenceInProgress
	if notes != "" {
		project.DueDiligence.Notes = notes
	}
	ok, err := p.updateWhere(ctx, id, []model.ProjectStatus{model.ProjectStatusSubmitted}, project,
		"status", "due_diligence_reviewer_id", "due_diligence_status", "due_diligence_notes")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Conflict("project %d changed while starting due diligence", id)
	}

	if err := p.departments.AdjustWorkload(ctx, actor.ID, 1); err != nil {
		logger.Warn("Failed to increase workload of reviewer %d: %v", actor.ID, err)
	}
	return p.Get(ctx, id)
}

// UpdateDueDiligence 更新尽调备注并追加文件
func (p *ProjectLogic) UpdateDueDiligence(ctx context.Context, actor Actor, id int64, notes string, documents []string) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !statusIn(project.Status, reviewableStatuses) {
		return nil, errs.Policy("due diligence cannot be updated in status %q", project.Status)
	}

	if notes != "" {
		project.DueDiligence.Notes = notes
	}
	for _, doc := range documents {
		if doc = strings.TrimSpace(doc); doc != "" {
			project.DueDiligence.Documents = append(project.DueDiligence.Documents, doc)
		}
	}
	ok, err := p.updateWhere(ctx, id, reviewableStatuses, project, "due_diligence_notes", "due_diligence_documents")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Conflict("project %d changed while updating due diligence", id)
	}
	return p.Get(ctx, id)
}

// CompleteDueDiligence 完成尽调, 通过后项目进入 verified
func (p *ProjectLogic) CompleteDueDiligence(ctx context.Context, actor Actor, id int64, passed bool, notes string) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusUnderReview {
		return nil, errs.Policy("due diligence can only be completed on projects under review, current status is %q", project.Status)
	}

	if notes != "" {
		project.DueDiligence.Notes = notes
	}
	if passed {
		project.Status = model.ProjectStatusVerified
		project.DueDiligence.Status = model.DueDiligenceCompleted
	} else {
		project.DueDiligence.Status = model.DueDiligenceFailed
	}
	ok, err := p.updateWhere(ctx, id, []model.ProjectStatus{model.ProjectStatusUnderReview}, project,
		"status", "due_diligence_status", "due_diligence_notes")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Conflict("project %d changed while completing due diligence", id)
	}

	if reviewer := project.DueDiligence.ReviewerId; reviewer != nil {
		if err := p.departments.AdjustWorkload(ctx, *reviewer, -1); err != nil {
			logger.Warn("Failed to decrease workload of reviewer %d: %v", *reviewer, err)
		}
	}
	return p.Get(ctx, id)
}

// Verify 审核通过并部署上链
//
// 上链失败不会阻塞审核结论: 项目仍然进入 active, 部署状态记为 failed 等待重试。
// 同一时间只允许一个审核员部署, 通过把 blockchain_status 置为 pending 来抢占。
func (p *ProjectLogic) Verify(ctx context.Context, actor Actor, id int64, notes string) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !statusIn(project.Status, reviewableStatuses) {
		return nil, errs.Policy("project cannot be verified in status %q", project.Status)
	}

	claimId, err := p.claimDeployment(ctx, id, reviewableStatuses)
	if err != nil {
		return nil, err
	}

	verifier := actor.ID
	verifiedAt := p.now()
	project.Verification.VerifiedBy = &verifier
	project.Verification.VerifiedAt = &verifiedAt
	project.Verification.Notes = notes
	return p.deployAndRecord(ctx, project, claimId, "verification_verified_by", "verification_verified_at", "verification_notes")
}

// RetryDeployment 重新部署上链失败的项目
func (p *ProjectLogic) RetryDeployment(ctx context.Context, actor Actor, id int64) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return p.retryDeployment(ctx, project)
}

// RetryFailedDeployments 批量重试部署失败的项目, 返回成功数量
//
// 先回收租期已过的部署抢占, 再重试。
func (p *ProjectLogic) RetryFailedDeployments(ctx context.Context, limit int) (int, error) {
	if err := p.ReleaseStaleClaims(ctx); err != nil {
		return 0, err
	}

	var projects []model.ProjectModel
	err := p.db.WithContext(ctx).
		Where("status = ? AND blockchain_status = ?", model.ProjectStatusActive, model.BlockchainStatusFailed).
		Order("updated_at ASC").
		Limit(limit).
		Find(&projects).Error
	if err != nil {
		return 0, errs.Internal(err, "failed to list failed deployments")
	}

	created := 0
	for i := range projects {
		project, err := p.retryDeployment(ctx, &projects[i])
		if err != nil {
			logger.Warn("Retry deployment of project %d skipped: %v", projects[i].Id, err)
			continue
		}
		if project.BlockchainStatus == model.BlockchainStatusCreated {
			created++
		}
	}
	return created, nil
}

func (p *ProjectLogic) retryDeployment(ctx context.Context, project *model.ProjectModel) (*model.ProjectModel, error) {
	retryable := project.BlockchainStatus == model.BlockchainStatusFailed || p.claimExpired(project)
	if project.Status != model.ProjectStatusActive || !retryable {
		return nil, errs.Policy("only active projects with a failed deployment can be retried, current status is %q/%q",
			project.Status, project.BlockchainStatus)
	}
	claimId, err := p.claimDeployment(ctx, project.Id, []model.ProjectStatus{model.ProjectStatusActive})
	if err != nil {
		return nil, err
	}
	return p.deployAndRecord(ctx, project, claimId)
}

// claimDeployment 抢占部署权, 其他审核员正在部署且租期未过时返回冲突
func (p *ProjectLogic) claimDeployment(ctx context.Context, id int64, statuses []model.ProjectStatus) (string, error) {
	claimId := uuid.NewString()
	claimedAt := p.now()
	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ? AND status IN ?", id, statuses).
		Where(claimableCondition, claimableChainStatuses, model.BlockchainStatusPending, claimedAt.Add(-p.claimTimeout)).
		Updates(map[string]interface{}{
			"blockchain_status":     model.BlockchainStatusPending,
			"blockchain_claim_id":   claimId,
			"blockchain_claimed_at": claimedAt,
		})
	if res.Error != nil {
		return "", errs.Internal(res.Error, "failed to claim deployment of project %d", id)
	}
	if res.RowsAffected > 0 {
		return claimId, nil
	}

	current, err := p.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !statusIn(current.Status, statuses) {
		return "", errs.Policy("project status changed to %q", current.Status)
	}
	return "", errs.Conflict("project %d is already being deployed by another reviewer", id)
}

// claimExpired pending 抢占是否已过租期
func (p *ProjectLogic) claimExpired(project *model.ProjectModel) bool {
	if project.BlockchainStatus != model.BlockchainStatusPending {
		return false
	}
	return project.BlockchainClaimedAt == nil || project.BlockchainClaimedAt.Before(p.now().Add(-p.claimTimeout))
}

// ReleaseStaleClaims 回收租期已过的部署抢占
//
// active 项目记为 failed 交给重试; 还没有审核结论的项目恢复为 not_created, 可以重新审核。
func (p *ProjectLogic) ReleaseStaleClaims(ctx context.Context) error {
	staleBefore := p.now().Add(-p.claimTimeout)
	stale := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("blockchain_status = ? AND (blockchain_claimed_at IS NULL OR blockchain_claimed_at < ?)", model.BlockchainStatusPending, staleBefore)

	res := stale.Session(&gorm.Session{}).
		Where("status = ?", model.ProjectStatusActive).
		Updates(map[string]interface{}{
			"blockchain_status":     model.BlockchainStatusFailed,
			"blockchain_error":      "deployment claim expired",
			"blockchain_claim_id":   "",
			"blockchain_claimed_at": nil,
		})
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to release stale deployment claims")
	}
	if res.RowsAffected > 0 {
		logger.Warn("Released %d stale deployment claims of active projects", res.RowsAffected)
	}

	res = stale.Session(&gorm.Session{}).
		Where("status IN ?", reviewableStatuses).
		Updates(map[string]interface{}{
			"blockchain_status":     model.BlockchainStatusNotCreated,
			"blockchain_claim_id":   "",
			"blockchain_claimed_at": nil,
		})
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to release stale deployment claims")
	}
	if res.RowsAffected > 0 {
		logger.Warn("Released %d stale deployment claims of projects under review", res.RowsAffected)
	}
	return nil
}

// deployAndRecord 部署上链并记录结果, 调用前必须已经抢占部署权
//
// 只有仍持有抢占的调用方能写入结果, 租期过后被他人抢占的部署结果会被丢弃。
func (p *ProjectLogic) deployAndRecord(ctx context.Context, project *model.ProjectModel, claimId string, extraColumns ...string) (*model.ProjectModel, error) {
	result, deployErr := p.deploy(ctx, project)

	project.Status = model.ProjectStatusActive
	if deployErr == nil {
		onChainId, txHash := result.ProjectId, result.TxHash
		project.BlockchainProjectId = &onChainId
		project.BlockchainTxHash = &txHash
		project.BlockchainStatus = model.BlockchainStatusCreated
		project.BlockchainError = ""
		metrics.Deployments.WithLabelValues("created").Inc()
	} else {
		project.BlockchainProjectId = nil
		project.BlockchainStatus = model.BlockchainStatusFailed
		project.BlockchainError = errs.Message(deployErr)
		metrics.Deployments.WithLabelValues("failed").Inc()
		logger.Error("Deployment of project %d failed: %v", project.Id, deployErr)
	}

	// 部署结果必须落库, 即使请求已被取消
	persistCtx := context.WithoutCancel(ctx)
	project.BlockchainClaimId = ""
	project.BlockchainClaimedAt = nil
	columns := append([]string{"status", "blockchain_project_id", "blockchain_tx_hash", "blockchain_status", "blockchain_error",
		"blockchain_claim_id", "blockchain_claimed_at"}, extraColumns...)
	res := p.db.WithContext(persistCtx).Model(&model.ProjectModel{}).
		Where("id = ? AND blockchain_status = ? AND blockchain_claim_id = ?", project.Id, model.BlockchainStatusPending, claimId).
		Select(columns).
		Updates(project)
	if res.Error != nil {
		return nil, errs.Internal(res.Error, "failed to record deployment of project %d", project.Id)
	}
	if res.RowsAffected == 0 {
		logger.Error("Deployment claim of project %d was taken over, result discarded (deployed: %t)", project.Id, deployErr == nil)
		return nil, errs.Conflict("deployment claim of project %d expired before the result was recorded", project.Id)
	}

	if deployErr == nil {
		p.notify(persistCtx, notify.EventProjectVerified, project.Id, 0, map[string]interface{}{
			"blockchain_project_id": result.ProjectId,
			"tx_hash":               result.TxHash,
		})
	} else {
		p.notify(persistCtx, notify.EventProjectDeploymentFailed, project.Id, 0, map[string]interface{}{
			"error": project.BlockchainError,
		})
	}
	return p.Get(persistCtx, project.Id)
}

func (p *ProjectLogic) deploy(ctx context.Context, project *model.ProjectModel) (chain.DeployResult, error) {
	owner, err := p.users.GetUser(ctx, project.OwnerId)
	if err != nil {
		return chain.DeployResult{}, err
	}
	if owner.WalletAddress == nil {
		return chain.DeployResult{}, errs.Validation("project owner %d has no payout wallet address", owner.Id)
	}
	return p.gateway.DeployProject(ctx, chain.DeployParams{
		Owner:        *owner.WalletAddress,
		Title:        project.Title,
		Description:  project.Description,
		Goal:         project.FundingGoal,
		Category:     project.Category,
		Location:     project.Location,
		TimelineDays: project.TimelineDays,
	})
}

// Reject 驳回项目
func (p *ProjectLogic) Reject(ctx context.Context, actor Actor, id int64, reason string) (*model.ProjectModel, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.Validation("a rejection reason is required")
	}
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !statusIn(project.Status, reviewableStatuses) {
		return nil, errs.Policy("project cannot be rejected in status %q", project.Status)
	}

	rejecter := actor.ID
	rejectedAt := p.now()
	project.Status = model.ProjectStatusRejected
	project.Verification.RejectedBy = &rejecter
	project.Verification.RejectedAt = &rejectedAt
	project.Verification.RejectionReason = reason
	project.BlockchainStatus = model.BlockchainStatusNotCreated
	project.BlockchainClaimId = ""
	project.BlockchainClaimedAt = nil

	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ? AND status IN ?", id, reviewableStatuses).
		Where(claimableCondition, claimableChainStatuses, model.BlockchainStatusPending, rejectedAt.Add(-p.claimTimeout)).
		Select("status", "verification_rejected_by", "verification_rejected_at", "verification_rejection_reason",
			"blockchain_status", "blockchain_claim_id", "blockchain_claimed_at").
		Updates(project)
	if res.Error != nil {
		return nil, errs.Internal(res.Error, "failed to reject project %d", id)
	}
	if res.RowsAffected == 0 {
		current, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.BlockchainStatus == model.BlockchainStatusPending {
			return nil, errs.Conflict("project %d is being deployed by another reviewer", id)
		}
		return nil, errs.Policy("project cannot be rejected in status %q", current.Status)
	}

	logger.Info("Project %d rejected by reviewer %d", id, actor.ID)
	p.notify(ctx, notify.EventProjectRejected, id, actor.ID, map[string]interface{}{"reason": reason})
	return p.Get(ctx, id)
}

// Complete 关闭众筹中的项目
func (p *ProjectLogic) Complete(ctx context.Context, actor Actor, id int64) (*model.ProjectModel, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if project.Status != model.ProjectStatusActive {
		return nil, errs.Policy("only active projects can be completed, current status is %q", project.Status)
	}

	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ? AND status = ?", id, model.ProjectStatusActive).
		Update("status", model.ProjectStatusClosed)
	if res.Error != nil {
		return nil, errs.Internal(res.Error, "failed to complete project %d", id)
	}
	if res.RowsAffected == 0 {
		return nil, errs.Policy("project %d is no longer active", id)
	}

	p.notify(ctx, notify.EventProjectClosed, id, actor.ID, nil)
	return p.Get(ctx, id)
}

// MarkFunded 链上已筹满或已放款时把项目标记为 funded, 返回是否发生了状态变化
func (p *ProjectLogic) MarkFunded(ctx context.Context, id int64) (bool, error) {
	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ? AND status = ?", id, model.ProjectStatusActive).
		Update("status", model.ProjectStatusFunded)
	if res.Error != nil {
		return false, errs.Internal(res.Error, "failed to mark project %d funded", id)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	logger.Info("Project %d is fully funded", id)
	p.notify(ctx, notify.EventProjectFunded, id, 0, nil)
	return true, nil
}

// SetOnChainActive 激活或停用链上项目
func (p *ProjectLogic) SetOnChainActive(ctx context.Context, actor Actor, id int64, active bool) (string, error) {
	project, err := p.loadForReview(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if !project.IsDeployed() {
		return "", errs.Validation("project %d is not deployed on chain", id)
	}
	if project.Status != model.ProjectStatusActive {
		return "", errs.Policy("only active projects can be toggled on chain, current status is %q", project.Status)
	}

	txHash, err := p.gateway.SetProjectActive(ctx, *project.BlockchainProjectId, active)
	if err != nil {
		return "", err
	}
	logger.Info("Project %d set on-chain active=%t by %d (tx: %s)", id, active, actor.ID, txHash)
	return txHash, nil
}

// ApplyContribution 原子累加项目的本地出资缓存
func (p *ProjectLogic) ApplyContribution(ctx context.Context, id int64, amount decimal.Decimal, newContributor bool) error {
	return applyContribution(p.db.WithContext(ctx), id, amount, newContributor)
}

func applyContribution(db *gorm.DB, id int64, amount decimal.Decimal, newContributor bool) error {
	updates := map[string]interface{}{
		"current_funding": gorm.Expr("current_funding + ?", amount),
	}
	if newContributor {
		updates["contributors_count"] = gorm.Expr("contributors_count + 1")
	}
	res := db.Model(&model.ProjectModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to update funding of project %d", id)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("project %d not found", id)
	}
	return nil
}

// SyncFundingSnapshot 用链上数据刷新本地缓存
//
// 链上索引可能落后于刚广播的交易, 缓存不会低于本地已确认出资的汇总。
func (p *ProjectLogic) SyncFundingSnapshot(ctx context.Context, id int64, total decimal.Decimal, contributors int64) error {
	local, err := confirmedTotals(p.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	if local.Total.GreaterThan(total) {
		total = local.Total
	}
	if local.Contributors > contributors {
		contributors = local.Contributors
	}

	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_funding":    total,
			"contributors_count": contributors,
		})
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to sync funding of project %d", id)
	}
	return nil
}

// loadForReview 加载项目并校验审核权限: 先判断存在, 再判断部门
func (p *ProjectLogic) loadForReview(ctx context.Context, actor Actor, id int64) (*model.ProjectModel, error) {
	project, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeReviewer(actor, project); err != nil {
		return nil, err
	}
	return project, nil
}

// authorizeReviewer 部门内任意审核员都可以处理项目, 管理员不受限制
func authorizeReviewer(actor Actor, project *model.ProjectModel) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != model.RoleGovernment {
		return errs.Authorization("only government reviewers can review projects")
	}
	if project.Department != "" && !strings.EqualFold(actor.Department, project.Department) {
		return errs.Authorization("reviewer in department %q cannot act on a project assigned to %q",
			actor.Department, project.Department)
	}
	return nil
}

func (p *ProjectLogic) authorizeOwner(actor Actor, project *model.ProjectModel) error {
	if actor.ID != project.OwnerId {
		return errs.Authorization("only the project owner can modify project %d", project.Id)
	}
	return nil
}

// updateWhere 按状态条件更新指定列, 返回是否命中
func (p *ProjectLogic) updateWhere(ctx context.Context, id int64, statuses []model.ProjectStatus, values *model.ProjectModel, columns ...string) (bool, error) {
	res := p.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ? AND status IN ?", id, statuses).
		Select(columns).
		Updates(values)
	if res.Error != nil {
		return false, errs.Internal(res.Error, "failed to update project %d", id)
	}
	return res.RowsAffected > 0, nil
}

func (p *ProjectLogic) validateProject(title, category string, goal decimal.Decimal, timelineDays int64) error {
	if strings.TrimSpace(title) == "" {
		return errs.Validation("project title is required")
	}
	if strings.TrimSpace(category) == "" {
		return errs.Validation("project category is required")
	}
	if goal.LessThan(p.minGoal) {
		return errs.Validation("funding goal must be at least %s", p.minGoal.String())
	}
	if timelineDays < 0 {
		return errs.Validation("timeline must not be negative")
	}
	return nil
}

func (p *ProjectLogic) notify(ctx context.Context, eventType string, projectId, actorId int64, data map[string]interface{}) {
	err := p.notifier.Notify(ctx, notify.Event{
		Type:       eventType,
		ProjectId:  projectId,
		ActorId:    actorId,
		Data:       data,
		OccurredAt: p.now(),
	})
	if err != nil {
		logger.Warn("Failed to send %s notification for project %d: %v", eventType, projectId, err)
	}
}

func statusIn(status model.ProjectStatus, statuses []model.ProjectStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// slugify 生成对外展示的项目标识: 标题转小写短横线形式, 再加8位随机后缀
func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	if s == "" {
		s = "project"
	}
	return s + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
