package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionModel 出资记录, 只追加不删除
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId          int64  `json:"project_id" gorm:"index;not null"`
	ContributorId      int64  `json:"contributor_id" gorm:"index;not null"`
	ContributorAddress string `json:"contributor_address" gorm:"size:42"`

	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
	AmountBaseUnits string          `json:"amount_base_units" gorm:"size:80;not null"` // 链上最小单位, uint256十进制字符串

	// 本币换算快照(可选)
	LocalCurrency string              `json:"local_currency,omitempty" gorm:"size:8"`
	LocalAmount   decimal.NullDecimal `json:"local_amount,omitempty" gorm:"type:decimal(36,18)"`
	ExchangeRate  decimal.NullDecimal `json:"exchange_rate,omitempty" gorm:"type:decimal(36,18)"`

	// 交易哈希是幂等键, 由唯一索引保证同一笔交易只记账一次
	TxHash      *string            `json:"tx_hash" gorm:"uniqueIndex;size:66"`
	Status      ContributionStatus `json:"status" gorm:"size:16;index;not null"`
	ConfirmedAt *time.Time         `json:"confirmed_at"`
}

// ContributionStatus 出资状态
type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "pending"
	ContributionStatusConfirmed ContributionStatus = "confirmed"
	ContributionStatusFailed    ContributionStatus = "failed"
)

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}
