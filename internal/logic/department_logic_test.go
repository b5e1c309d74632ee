package logic

import (
	"context"
	"testing"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := map[string]string{
		"crops":        DepartmentCrops,
		" Grains ":     DepartmentCrops,
		"POULTRY":      DepartmentLivestock,
		"aquaculture":  DepartmentFisheries,
		"agroforestry": DepartmentForestry,
		"irrigation":   DepartmentInfrastructure,
		"mushrooms":    DepartmentGeneral,
		"":             DepartmentGeneral,
	}
	for category, want := range tests {
		assert.Equal(t, want, Categorize(category), category)
	}
}

func TestAutoCategorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.submit(t, env.farmer(t), "crops")

	result := env.departments.AutoCategorize(ctx, p.Id, "dairy")
	assert.True(t, result.Success)
	assert.Equal(t, DepartmentLivestock, result.Department)
	assert.Equal(t, DepartmentLivestock, env.reload(t, p.Id).Department)

	missing := env.departments.AutoCategorize(ctx, 31337, "dairy")
	assert.False(t, missing.Success)
	assert.Equal(t, DepartmentGeneral, missing.Department)
	assert.NotEmpty(t, missing.Error)
}

func TestWorkload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	busy := env.reviewer(t, DepartmentCrops)
	idle := env.reviewer(t, DepartmentCrops)
	env.reviewer(t, DepartmentLivestock)
	env.createUser(t, model.RoleFarmer, DepartmentCrops, false)

	require.NoError(t, env.departments.AdjustWorkload(ctx, busy.ID, 3))
	require.NoError(t, env.departments.AdjustWorkload(ctx, idle.ID, -2))

	reviewers, err := env.departments.ListReviewers(ctx, "crops")
	require.NoError(t, err)
	require.Len(t, reviewers, 2)
	assert.Equal(t, idle.ID, reviewers[0].Id)
	assert.Zero(t, reviewers[0].CurrentWorkload)

	w, err := env.departments.Workload(ctx, DepartmentCrops)
	require.NoError(t, err)
	assert.Equal(t, DepartmentCrops, w.Department)
	assert.Equal(t, 3, w.CurrentWorkload)
	assert.Equal(t, 20, w.MaxWorkload)
	assert.Len(t, w.Reviewers, 2)

	err = env.departments.AdjustWorkload(ctx, 8888, 1)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}
