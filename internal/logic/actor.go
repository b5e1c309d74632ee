package logic

import (
	"github.com/blues/agrofund/internal/model"
)

// Actor 身份服务认证过的调用方
type Actor struct {
	ID         int64
	Role       model.Role
	Department string
}

// IsAdmin 是否为管理员
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// SystemActor 后台任务使用的调用方
var SystemActor = Actor{Role: model.RoleAdmin}
