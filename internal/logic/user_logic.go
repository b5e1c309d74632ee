package logic

import (
	"context"
	"errors"
	"time"

	"github.com/blues/agrofund/internal/cache"
	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// UserLogic 读取身份服务的用户记录, 带缓存
//
// 用户记录被修改的地方(钱包、认证状态)负责让缓存失效,
// 密码等凭证由身份服务自己维护, 修改后调用 Invalidate。
type UserLogic struct {
	db    *gorm.DB
	cache cache.Store
	ttl   time.Duration
}

func NewUserLogic(db *gorm.DB, store cache.Store, ttl time.Duration) *UserLogic {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UserLogic{db: db, cache: store, ttl: ttl}
}

// GetUser 获取用户
func (u *UserLogic) GetUser(ctx context.Context, id int64) (*model.UserModel, error) {
	var user model.UserModel
	key := cache.UserKey(id)

	hit, err := u.cache.Get(ctx, key, &user)
	if err != nil {
		logger.Warn("Failed to read user %d from cache: %v", id, err)
	}
	if hit {
		return &user, nil
	}

	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user %d not found", id)
		}
		return nil, errs.Internal(err, "failed to load user %d", id)
	}

	if err := u.cache.Set(ctx, key, &user, u.ttl); err != nil {
		logger.Warn("Failed to cache user %d: %v", id, err)
	}
	return &user, nil
}

// UpdateWallet 设置收款钱包地址, 地址全局唯一
func (u *UserLogic) UpdateWallet(ctx context.Context, actor Actor, userId int64, wallet string) (*model.UserModel, error) {
	if actor.ID != userId && !actor.IsAdmin() {
		return nil, errs.Authorization("cannot change the wallet of another user")
	}
	if !common.IsHexAddress(wallet) {
		return nil, errs.Validation("invalid wallet address %q", wallet)
	}
	normalized := common.HexToAddress(wallet).Hex()

	res := u.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", userId).
		Update("wallet_address", normalized)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("wallet address %s is already registered to another user", normalized)
		}
		return nil, errs.Internal(res.Error, "failed to update wallet")
	}
	if res.RowsAffected == 0 {
		return nil, errs.NotFound("user %d not found", userId)
	}

	u.Invalidate(ctx, userId)
	return u.GetUser(ctx, userId)
}

// SetVerified 更新用户认证状态
func (u *UserLogic) SetVerified(ctx context.Context, userId int64, verified bool) error {
	res := u.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", userId).
		Update("is_verified", verified)
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to update user verification")
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("user %d not found", userId)
	}
	u.Invalidate(ctx, userId)
	return nil
}

// Invalidate 让用户缓存失效
func (u *UserLogic) Invalidate(ctx context.Context, userId int64) {
	if err := u.cache.Invalidate(ctx, cache.UserKey(userId)); err != nil {
		logger.Warn("Failed to invalidate cached user %d: %v", userId, err)
	}
}
