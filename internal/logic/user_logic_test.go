package logic

import (
	"context"
	"testing"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserIsCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, model.RoleInvestor, "", false)

	first, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, u.Name, first.Name)

	require.NoError(t, env.db.Model(&model.UserModel{}).Where("id = ?", u.Id).Update("name", "renamed").Error)
	cached, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, u.Name, cached.Name)

	env.users.Invalidate(ctx, u.Id)
	fresh, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", fresh.Name)

	_, err = env.users.GetUser(ctx, 4040)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestUpdateWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, model.RoleFarmer, "", false)
	self := Actor{ID: u.Id, Role: model.RoleFarmer}

	_, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)

	updated, err := env.users.UpdateWallet(ctx, self, u.Id, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	require.NotNil(t, updated.WalletAddress)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", *updated.WalletAddress)

	t.Run("invalid address", func(t *testing.T) {
		_, err := env.users.UpdateWallet(ctx, self, u.Id, "not-a-wallet")
		assert.True(t, errs.Is(err, errs.KindValidation))
	})

	t.Run("someone else's wallet", func(t *testing.T) {
		other := env.createUser(t, model.RoleFarmer, "", false)
		_, err := env.users.UpdateWallet(ctx, self, other.Id, "0x00000000000000000000000000000000000000bb")
		assert.True(t, errs.Is(err, errs.KindAuthorization))
	})

	t.Run("wallet already registered", func(t *testing.T) {
		other := env.createUser(t, model.RoleFarmer, "", false)
		_, err := env.users.UpdateWallet(ctx, Actor{ID: other.Id}, other.Id, "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
		assert.True(t, errs.Is(err, errs.KindConflict), err)
	})

	t.Run("admin can set any wallet", func(t *testing.T) {
		other := env.createUser(t, model.RoleFarmer, "", false)
		_, err := env.users.UpdateWallet(ctx, Actor{ID: 1, Role: model.RoleAdmin}, other.Id, "0x00000000000000000000000000000000000000cc")
		assert.NoError(t, err)
	})
}

func TestSetVerifiedInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, model.RoleInvestor, "", false)

	before, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.False(t, before.IsVerified)

	require.NoError(t, env.users.SetVerified(ctx, u.Id, true))
	after, err := env.users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.True(t, after.IsVerified)

	assert.True(t, errs.Is(env.users.SetVerified(ctx, 999, true), errs.KindNotFound))
}
