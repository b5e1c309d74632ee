package model

import "time"

// UserModel 用户记录, 由身份服务维护, 核心流程只读取收款地址和部门
type UserModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string  `json:"name" gorm:"not null"`
	Email         string  `json:"email" gorm:"size:255;index"`
	Role          Role    `json:"role" gorm:"size:16;index;not null"`
	Department    string  `json:"department" gorm:"size:32;index"`
	WalletAddress *string `json:"wallet_address" gorm:"uniqueIndex;size:42"`
	IsVerified    bool    `json:"is_verified" gorm:"default:false"`
	IsActive      bool    `json:"is_active" gorm:"default:true"`

	// 审核工作量, 仅用于展示和分流参考
	CurrentWorkload int `json:"current_workload" gorm:"default:0"`
	MaxWorkload     int `json:"max_workload" gorm:"default:10"`
}

// Role 用户角色
type Role string

const (
	RoleFarmer     Role = "farmer"     // 项目发起人
	RoleGovernment Role = "government" // 政府审核员
	RoleInvestor   Role = "investor"   // 出资人
	RoleAdmin      Role = "admin"
)

// TableName 自定义表名
func (UserModel) TableName() string {
	return "user"
}
