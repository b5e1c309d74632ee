package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectModel 众筹项目模型
//
// 金额字段只是链上数据的本地缓存, 部署后以链上数据为准。
type ProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug    string `json:"slug" gorm:"uniqueIndex;size:128;not null"`
	OwnerId int64  `json:"owner_id" gorm:"index;not null"`

	// 基本信息
	Title        string `json:"title" gorm:"not null"`
	Description  string `json:"description" gorm:"type:text"`
	Category     string `json:"category" gorm:"index"`
	Location     string `json:"location"`
	TimelineDays int64  `json:"timeline_days"`

	// 众筹信息(缓存)
	FundingGoal       decimal.Decimal `json:"funding_goal" gorm:"type:decimal(36,18);not null"`
	CurrentFunding    decimal.Decimal `json:"current_funding" gorm:"type:decimal(36,18);not null;default:0"`
	ContributorsCount int64           `json:"contributors_count" gorm:"not null;default:0"`

	Status     ProjectStatus `json:"status" gorm:"size:32;index;not null"`
	Department string        `json:"department" gorm:"size:32;index"`

	// 区块链信息
	BlockchainProjectId *int64           `json:"blockchain_project_id"`
	BlockchainTxHash    *string          `json:"blockchain_tx_hash" gorm:"size:66"`
	BlockchainStatus    BlockchainStatus `json:"blockchain_status" gorm:"size:32;index;not null"`
	BlockchainError     string           `json:"blockchain_error" gorm:"type:text"`

	// 部署抢占, 超过租期未落库的 pending 可以被重新抢占
	BlockchainClaimId   string     `json:"-" gorm:"size:36"`
	BlockchainClaimedAt *time.Time `json:"blockchain_claimed_at,omitempty"`

	DueDiligence DueDiligence `json:"due_diligence" gorm:"embedded;embeddedPrefix:due_diligence_"`
	Verification Verification `json:"verification" gorm:"embedded;embeddedPrefix:verification_"`
}

// DueDiligence 尽职调查记录, 部门内任意审核员都可以处理
type DueDiligence struct {
	ReviewerId *int64             `json:"reviewer_id"`
	Notes      string             `json:"notes" gorm:"type:text"`
	Documents  []string           `json:"documents" gorm:"type:text;serializer:json"`
	Status     DueDiligenceStatus `json:"status" gorm:"size:32"`
}

// Verification 审核结果, 通过和驳回互斥
type Verification struct {
	VerifiedBy      *int64     `json:"verified_by"`
	VerifiedAt      *time.Time `json:"verified_at"`
	Notes           string     `json:"notes" gorm:"type:text"`
	RejectedBy      *int64     `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason" gorm:"type:text"`
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusSubmitted   ProjectStatus = "submitted"    // 已提交
	ProjectStatusUnderReview ProjectStatus = "under_review" // 尽调中
	ProjectStatusVerified    ProjectStatus = "verified"     // 尽调通过
	ProjectStatusActive      ProjectStatus = "active"       // 众筹中
	ProjectStatusFunded      ProjectStatus = "funded"       // 已筹满
	ProjectStatusRejected    ProjectStatus = "rejected"     // 已驳回
	ProjectStatusClosed      ProjectStatus = "closed"       // 已关闭
)

// IsTerminal 是否为终态
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusFunded || s == ProjectStatusRejected || s == ProjectStatusClosed
}

// BlockchainStatus 上链状态
type BlockchainStatus string

const (
	BlockchainStatusNotCreated BlockchainStatus = "not_created"
	BlockchainStatusPending    BlockchainStatus = "pending"
	BlockchainStatusCreated    BlockchainStatus = "created"
	BlockchainStatusFailed     BlockchainStatus = "failed"
)

// DueDiligenceStatus 尽调状态
type DueDiligenceStatus string

const (
	DueDiligencePending    DueDiligenceStatus = "pending"
	DueDiligenceInProgress DueDiligenceStatus = "in_progress"
	DueDiligenceCompleted  DueDiligenceStatus = "completed"
	DueDiligenceFailed     DueDiligenceStatus = "failed"
)

// IsDeployed 是否已经在链上创建
func (p *ProjectModel) IsDeployed() bool {
	return p.BlockchainProjectId != nil && p.BlockchainStatus == BlockchainStatusCreated
}

// TableName 自定义表名
func (ProjectModel) TableName() string {
	return "project"
}
