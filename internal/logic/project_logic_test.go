package logic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/model"
	"github.com/blues/agrofund/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	owner := env.farmer(t)

	p := env.submit(t, owner, "Poultry")

	assert.Equal(t, model.ProjectStatusSubmitted, p.Status)
	assert.Equal(t, DepartmentLivestock, p.Department)
	assert.Equal(t, owner.ID, p.OwnerId)
	assert.True(t, p.CurrentFunding.IsZero())
	assert.Zero(t, p.ContributorsCount)
	assert.Equal(t, model.BlockchainStatusNotCreated, p.BlockchainStatus)
	assert.Nil(t, p.BlockchainProjectId)
	assert.Equal(t, model.DueDiligencePending, p.DueDiligence.Status)
	assert.True(t, strings.HasPrefix(p.Slug, "drip-irrigation-for-maize-"))
	assert.Equal(t, DepartmentLivestock, env.reload(t, p.Id).Department)
	assert.Equal(t, []string{notify.EventProjectSubmitted}, env.notifier.types())
}

func TestCreateProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.farmer(t)
	noWallet := env.createUser(t, model.RoleFarmer, "", false)

	valid := CreateProjectInput{Title: "Greenhouse", Category: "vegetables", FundingGoal: decimal.NewFromInt(500)}

	t.Run("missing payout wallet", func(t *testing.T) {
		_, err := env.projects.Create(ctx, Actor{ID: noWallet.Id, Role: model.RoleFarmer}, valid)
		require.True(t, errs.Is(err, errs.KindValidation))
		assert.Contains(t, errs.Message(err), "payout wallet")
	})

	t.Run("goal below minimum names the minimum", func(t *testing.T) {
		for _, goal := range []string{"0", "99.99", "-5"} {
			in := valid
			in.FundingGoal = decimal.RequireFromString(goal)
			_, err := env.projects.Create(ctx, owner, in)
			require.True(t, errs.Is(err, errs.KindValidation), goal)
			assert.Contains(t, errs.Message(err), "100")
		}
	})

	t.Run("title required", func(t *testing.T) {
		in := valid
		in.Title = "  "
		_, err := env.projects.Create(ctx, owner, in)
		assert.True(t, errs.Is(err, errs.KindValidation))
	})

	t.Run("investors cannot create", func(t *testing.T) {
		_, err := env.projects.Create(ctx, Actor{ID: owner.ID, Role: model.RoleInvestor}, valid)
		assert.True(t, errs.Is(err, errs.KindAuthorization))
	})

	var count int64
	require.NoError(t, env.db.Model(&model.ProjectModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateAndRemoveOnlyWhileSubmitted(t *testing.T) {
	statuses := []model.ProjectStatus{
		model.ProjectStatusSubmitted,
		model.ProjectStatusUnderReview,
		model.ProjectStatusVerified,
		model.ProjectStatusActive,
		model.ProjectStatusFunded,
		model.ProjectStatusRejected,
		model.ProjectStatusClosed,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			owner := env.farmer(t)
			p := env.submit(t, owner, "crops")
			env.setStatus(t, p.Id, status)

			title := "Renamed"
			_, updateErr := env.projects.Update(ctx, owner, p.Id, UpdateProjectInput{Title: &title})
			removeErr := env.projects.Remove(ctx, owner, p.Id)

			if status == model.ProjectStatusSubmitted {
				require.NoError(t, updateErr)
				require.NoError(t, removeErr)
				return
			}
			assert.True(t, errs.Is(updateErr, errs.KindPolicy), updateErr)
			assert.True(t, errs.Is(removeErr, errs.KindPolicy), removeErr)
			assert.Equal(t, "Drip irrigation for maize", env.reload(t, p.Id).Title)
		})
	}
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.farmer(t)
	p := env.submit(t, owner, "crops")

	t.Run("other users cannot edit", func(t *testing.T) {
		other := env.farmer(t)
		title := "Mine now"
		_, err := env.projects.Update(ctx, other, p.Id, UpdateProjectInput{Title: &title})
		assert.True(t, errs.Is(err, errs.KindAuthorization))
	})

	t.Run("goal is validated again", func(t *testing.T) {
		goal := decimal.NewFromInt(10)
		_, err := env.projects.Update(ctx, owner, p.Id, UpdateProjectInput{FundingGoal: &goal})
		require.True(t, errs.Is(err, errs.KindValidation))
		assert.Contains(t, errs.Message(err), "at least 100")
	})

	t.Run("category change moves department", func(t *testing.T) {
		category := "aquaculture"
		goal := decimal.NewFromInt(250)
		updated, err := env.projects.Update(ctx, owner, p.Id, UpdateProjectInput{Category: &category, FundingGoal: &goal})
		require.NoError(t, err)
		assert.Equal(t, DepartmentFisheries, updated.Department)
		assert.True(t, updated.FundingGoal.Equal(goal))
	})

	t.Run("unknown project", func(t *testing.T) {
		err := env.projects.Remove(ctx, owner, 9999)
		assert.True(t, errs.Is(err, errs.KindNotFound))
	})
}

func TestVerifyDeploysProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.farmer(t)
	p := env.submit(t, owner, "grains")
	reviewer := env.reviewer(t, DepartmentCrops)

	verified, err := env.projects.Verify(ctx, reviewer, p.Id, "site visit ok")
	require.NoError(t, err)

	assert.Equal(t, model.ProjectStatusActive, verified.Status)
	assert.Equal(t, model.BlockchainStatusCreated, verified.BlockchainStatus)
	require.NotNil(t, verified.BlockchainProjectId)
	assert.Equal(t, int64(42), *verified.BlockchainProjectId)
	require.NotNil(t, verified.BlockchainTxHash)
	assert.Equal(t, txHash("d"), *verified.BlockchainTxHash)
	require.NotNil(t, verified.Verification.VerifiedBy)
	assert.Equal(t, reviewer.ID, *verified.Verification.VerifiedBy)
	assert.NotNil(t, verified.Verification.VerifiedAt)
	assert.Equal(t, "site visit ok", verified.Verification.Notes)
	assert.Empty(t, verified.BlockchainError)

	ownerUser, err := env.users.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, *ownerUser.WalletAddress, env.gateway.lastDeploy.Owner)
	assert.True(t, env.gateway.lastDeploy.Goal.Equal(decimal.NewFromInt(100)))
	assert.Contains(t, env.notifier.types(), notify.EventProjectVerified)
}

func TestVerifyKeepsReviewDecisionWhenDeployFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.submit(t, env.farmer(t), "crops")
	env.gateway.deployErr = errs.External(errors.New("execution reverted"), "chain call createProject failed")

	verified, err := env.projects.Verify(ctx, env.reviewer(t, DepartmentCrops), p.Id, "")
	require.NoError(t, err)

	assert.Equal(t, model.ProjectStatusActive, verified.Status)
	assert.Equal(t, model.BlockchainStatusFailed, verified.BlockchainStatus)
	assert.Nil(t, verified.BlockchainProjectId)
	assert.Contains(t, verified.BlockchainError, "createProject")
	assert.NotNil(t, verified.Verification.VerifiedBy)
	assert.Contains(t, env.notifier.types(), notify.EventProjectDeploymentFailed)
}

func TestVerifyFromEveryReviewableStatus(t *testing.T) {
	for _, status := range reviewableStatuses {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			p := env.submit(t, env.farmer(t), "crops")
			env.setStatus(t, p.Id, status)

			verified, err := env.projects.Verify(context.Background(), env.reviewer(t, DepartmentCrops), p.Id, "")
			require.NoError(t, err)
			assert.Equal(t, model.ProjectStatusActive, verified.Status)
		})
	}
}

func TestVerifyRejectsCrossDepartmentReviewer(t *testing.T) {
	env := newTestEnv(t)
	p := env.submit(t, env.farmer(t), "livestock")
	require.Equal(t, DepartmentLivestock, p.Department)

	_, err := env.projects.Verify(context.Background(), env.reviewer(t, DepartmentCrops), p.Id, "")

	require.True(t, errs.Is(err, errs.KindAuthorization))
	reloaded := env.reload(t, p.Id)
	assert.Equal(t, model.ProjectStatusSubmitted, reloaded.Status)
	assert.Equal(t, model.BlockchainStatusNotCreated, reloaded.BlockchainStatus)
	assert.Zero(t, env.gateway.deployCalls)
}

func TestVerifyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)

	t.Run("not found", func(t *testing.T) {
		_, err := env.projects.Verify(ctx, reviewer, 12345, "")
		assert.True(t, errs.Is(err, errs.KindNotFound))
	})

	t.Run("farmers cannot verify", func(t *testing.T) {
		owner := env.farmer(t)
		p := env.submit(t, owner, "crops")
		_, err := env.projects.Verify(ctx, owner, p.Id, "")
		assert.True(t, errs.Is(err, errs.KindAuthorization))
	})

	t.Run("ineligible status is named", func(t *testing.T) {
		p := env.submit(t, env.farmer(t), "crops")
		env.setStatus(t, p.Id, model.ProjectStatusRejected)
		_, err := env.projects.Verify(ctx, reviewer, p.Id, "")
		require.True(t, errs.Is(err, errs.KindPolicy))
		assert.Contains(t, errs.Message(err), "rejected")
	})

	t.Run("concurrent deployment is a conflict", func(t *testing.T) {
		p := env.submit(t, env.farmer(t), "crops")
		claimedAt := time.Now().UTC()
		env.forceClaim(t, p.Id, model.ProjectStatusSubmitted, &claimedAt)
		calls := env.gateway.deployCalls

		_, err := env.projects.Verify(ctx, reviewer, p.Id, "")
		assert.True(t, errs.Is(err, errs.KindConflict))
		assert.Equal(t, calls, env.gateway.deployCalls)
	})

	t.Run("admin bypasses department", func(t *testing.T) {
		p := env.submit(t, env.farmer(t), "dairy")
		verified, err := env.projects.Verify(ctx, Actor{ID: 1, Role: model.RoleAdmin}, p.Id, "")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectStatusActive, verified.Status)
	})
}

func TestRejectProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)
	p := env.submit(t, env.farmer(t), "crops")

	_, err := env.projects.Reject(ctx, reviewer, p.Id, "   ")
	require.True(t, errs.Is(err, errs.KindValidation))

	_, err = env.projects.Reject(ctx, env.reviewer(t, DepartmentLivestock), p.Id, "incomplete")
	require.True(t, errs.Is(err, errs.KindAuthorization))

	rejected, err := env.projects.Reject(ctx, reviewer, p.Id, "land title missing")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusRejected, rejected.Status)
	assert.Equal(t, "land title missing", rejected.Verification.RejectionReason)
	require.NotNil(t, rejected.Verification.RejectedBy)
	assert.Equal(t, reviewer.ID, *rejected.Verification.RejectedBy)
	assert.Nil(t, rejected.Verification.VerifiedBy)
	assert.Zero(t, env.gateway.deployCalls)

	_, err = env.projects.Reject(ctx, reviewer, p.Id, "again")
	assert.True(t, errs.Is(err, errs.KindPolicy))
}

func TestDueDiligenceFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)
	p := env.submit(t, env.farmer(t), "fruits")

	started, err := env.projects.StartDueDiligence(ctx, reviewer, p.Id, "scheduled visit")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusUnderReview, started.Status)
	assert.Equal(t, model.DueDiligenceInProgress, started.DueDiligence.Status)
	require.NotNil(t, started.DueDiligence.ReviewerId)
	assert.Equal(t, reviewer.ID, *started.DueDiligence.ReviewerId)

	w, err := env.departments.Workload(ctx, DepartmentCrops)
	require.NoError(t, err)
	assert.Equal(t, 1, w.CurrentWorkload)

	updated, err := env.projects.UpdateDueDiligence(ctx, reviewer, p.Id, "", []string{"soil-report.pdf", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"soil-report.pdf"}, updated.DueDiligence.Documents)
	assert.Equal(t, "scheduled visit", updated.DueDiligence.Notes)

	_, err = env.projects.StartDueDiligence(ctx, reviewer, p.Id, "")
	assert.True(t, errs.Is(err, errs.KindPolicy))

	completed, err := env.projects.CompleteDueDiligence(ctx, reviewer, p.Id, true, "all good")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusVerified, completed.Status)
	assert.Equal(t, model.DueDiligenceCompleted, completed.DueDiligence.Status)

	w, err = env.departments.Workload(ctx, DepartmentCrops)
	require.NoError(t, err)
	assert.Zero(t, w.CurrentWorkload)

	verified, err := env.projects.Verify(ctx, reviewer, p.Id, "")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, verified.Status)
}

func TestFailedDueDiligenceStaysUnderReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)
	p := env.submit(t, env.farmer(t), "crops")

	_, err := env.projects.StartDueDiligence(ctx, reviewer, p.Id, "")
	require.NoError(t, err)
	done, err := env.projects.CompleteDueDiligence(ctx, reviewer, p.Id, false, "permits expired")
	require.NoError(t, err)

	assert.Equal(t, model.ProjectStatusUnderReview, done.Status)
	assert.Equal(t, model.DueDiligenceFailed, done.DueDiligence.Status)
	assert.Equal(t, "permits expired", done.DueDiligence.Notes)
}

func TestRetryDeployment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)
	p := env.submit(t, env.farmer(t), "crops")

	_, err := env.projects.RetryDeployment(ctx, reviewer, p.Id)
	require.True(t, errs.Is(err, errs.KindPolicy))

	env.gateway.deployErr = errors.New("rpc timeout")
	failed, err := env.projects.Verify(ctx, reviewer, p.Id, "")
	require.NoError(t, err)
	require.Equal(t, model.BlockchainStatusFailed, failed.BlockchainStatus)

	env.gateway.deployErr = nil
	retried, err := env.projects.RetryDeployment(ctx, reviewer, p.Id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, retried.Status)
	assert.Equal(t, model.BlockchainStatusCreated, retried.BlockchainStatus)
	require.NotNil(t, retried.BlockchainProjectId)
	assert.Empty(t, retried.BlockchainError)
	assert.NotNil(t, retried.Verification.VerifiedBy)
}

func TestRetryFailedDeployments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)

	env.gateway.deployErr = errors.New("rpc timeout")
	for i := 0; i < 3; i++ {
		p := env.submit(t, env.farmer(t), "crops")
		_, err := env.projects.Verify(ctx, reviewer, p.Id, "")
		require.NoError(t, err)
	}
	env.gateway.deployErr = nil

	created, err := env.projects.RetryFailedDeployments(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	var remaining int64
	require.NoError(t, env.db.Model(&model.ProjectModel{}).
		Where("blockchain_status = ?", model.BlockchainStatusFailed).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestStaleDeploymentClaim(t *testing.T) {
	ctx := context.Background()
	longAgo := time.Now().UTC().Add(-time.Hour)

	t.Run("verify takes over an expired claim", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.submit(t, env.farmer(t), "crops")
		env.forceClaim(t, p.Id, model.ProjectStatusSubmitted, &longAgo)

		verified, err := env.projects.Verify(ctx, env.reviewer(t, DepartmentCrops), p.Id, "")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectStatusActive, verified.Status)
		assert.Equal(t, model.BlockchainStatusCreated, verified.BlockchainStatus)
		assert.Nil(t, verified.BlockchainClaimedAt)
		assert.Empty(t, env.reload(t, p.Id).BlockchainClaimId)
	})

	t.Run("claim without timestamp is expired", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.submit(t, env.farmer(t), "crops")
		env.forceClaim(t, p.Id, model.ProjectStatusSubmitted, nil)

		rejected, err := env.projects.Reject(ctx, env.reviewer(t, DepartmentCrops), p.Id, "land title missing")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectStatusRejected, rejected.Status)
		assert.Equal(t, model.BlockchainStatusNotCreated, rejected.BlockchainStatus)
	})

	t.Run("live claim still blocks verify and reject", func(t *testing.T) {
		env := newTestEnv(t)
		reviewer := env.reviewer(t, DepartmentCrops)
		p := env.submit(t, env.farmer(t), "crops")
		claimedAt := time.Now().UTC()
		env.forceClaim(t, p.Id, model.ProjectStatusSubmitted, &claimedAt)

		_, err := env.projects.Verify(ctx, reviewer, p.Id, "")
		assert.True(t, errs.Is(err, errs.KindConflict), err)
		_, err = env.projects.Reject(ctx, reviewer, p.Id, "incomplete")
		assert.True(t, errs.Is(err, errs.KindConflict), err)
		assert.Zero(t, env.gateway.deployCalls)
	})

	t.Run("manual retry of an expired claim", func(t *testing.T) {
		env := newTestEnv(t)
		reviewer := env.reviewer(t, DepartmentCrops)
		p := env.submit(t, env.farmer(t), "crops")
		env.forceClaim(t, p.Id, model.ProjectStatusActive, &longAgo)

		retried, err := env.projects.RetryDeployment(ctx, reviewer, p.Id)
		require.NoError(t, err)
		assert.Equal(t, model.BlockchainStatusCreated, retried.BlockchainStatus)
	})

	t.Run("retry job releases expired claims", func(t *testing.T) {
		env := newTestEnv(t)
		reviewer := env.reviewer(t, DepartmentCrops)
		crashedDuringRetry := env.submit(t, env.farmer(t), "crops")
		env.forceClaim(t, crashedDuringRetry.Id, model.ProjectStatusActive, &longAgo)
		crashedDuringVerify := env.submit(t, env.farmer(t), "crops")
		env.forceClaim(t, crashedDuringVerify.Id, model.ProjectStatusSubmitted, &longAgo)
		inFlight := env.submit(t, env.farmer(t), "crops")
		claimedAt := time.Now().UTC()
		env.forceClaim(t, inFlight.Id, model.ProjectStatusActive, &claimedAt)

		created, err := env.projects.RetryFailedDeployments(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, created)

		assert.Equal(t, model.BlockchainStatusCreated, env.reload(t, crashedDuringRetry.Id).BlockchainStatus)

		released := env.reload(t, crashedDuringVerify.Id)
		assert.Equal(t, model.ProjectStatusSubmitted, released.Status)
		assert.Equal(t, model.BlockchainStatusNotCreated, released.BlockchainStatus)
		verified, err := env.projects.Verify(ctx, reviewer, crashedDuringVerify.Id, "")
		require.NoError(t, err)
		assert.Equal(t, model.BlockchainStatusCreated, verified.BlockchainStatus)

		assert.Equal(t, model.BlockchainStatusPending, env.reload(t, inFlight.Id).BlockchainStatus)
	})

	t.Run("late result of a taken over claim is discarded", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.submit(t, env.farmer(t), "crops")
		staleClaim, err := env.projects.claimDeployment(ctx, p.Id, reviewableStatuses)
		require.NoError(t, err)
		require.NoError(t, env.db.Model(&model.ProjectModel{}).Where("id = ?", p.Id).
			Update("blockchain_claimed_at", longAgo).Error)

		verified, err := env.projects.Verify(ctx, env.reviewer(t, DepartmentCrops), p.Id, "")
		require.NoError(t, err)
		require.Equal(t, model.BlockchainStatusCreated, verified.BlockchainStatus)

		env.gateway.deployErr = errors.New("nonce too low")
		_, err = env.projects.deployAndRecord(ctx, env.reload(t, p.Id), staleClaim)
		assert.True(t, errs.Is(err, errs.KindConflict), err)
		assert.Equal(t, model.BlockchainStatusCreated, env.reload(t, p.Id).BlockchainStatus)
	})
}

func TestCompleteAndMarkFunded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)

	p := env.activate(t)
	funded, err := env.projects.MarkFunded(ctx, p.Id)
	require.NoError(t, err)
	assert.True(t, funded)
	funded, err = env.projects.MarkFunded(ctx, p.Id)
	require.NoError(t, err)
	assert.False(t, funded)

	_, err = env.projects.Complete(ctx, reviewer, p.Id)
	assert.True(t, errs.Is(err, errs.KindPolicy))

	other := env.activate(t)
	closed, err := env.projects.Complete(ctx, reviewer, other.Id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusClosed, closed.Status)
}

func TestSetOnChainActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.reviewer(t, DepartmentCrops)

	submitted := env.submit(t, env.farmer(t), "crops")
	_, err := env.projects.SetOnChainActive(ctx, reviewer, submitted.Id, false)
	require.True(t, errs.Is(err, errs.KindValidation))

	p := env.activate(t)
	tx, err := env.projects.SetOnChainActive(ctx, reviewer, p.Id, false)
	require.NoError(t, err)
	assert.Equal(t, txHash("e"), tx)
	assert.False(t, env.gateway.state.IsActive)

	env.gateway.setActiveErr = errs.External(errors.New("nonce too low"), "chain call setProjectActive failed")
	_, err = env.projects.SetOnChainActive(ctx, reviewer, p.Id, true)
	assert.True(t, errs.Is(err, errs.KindExternalDependency))
}

func TestApplyContributionIncrements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.submit(t, env.farmer(t), "crops")

	require.NoError(t, env.projects.ApplyContribution(ctx, p.Id, decimal.NewFromInt(30), true))
	require.NoError(t, env.projects.ApplyContribution(ctx, p.Id, decimal.NewFromInt(12), false))

	reloaded := env.reload(t, p.Id)
	assert.True(t, reloaded.CurrentFunding.Equal(decimal.NewFromInt(42)), reloaded.CurrentFunding.String())
	assert.Equal(t, int64(1), reloaded.ContributorsCount)

	err := env.projects.ApplyContribution(ctx, 777, decimal.NewFromInt(1), true)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestListProjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.farmer(t)
	env.submit(t, owner, "crops")
	env.submit(t, owner, "poultry")
	env.submit(t, env.farmer(t), "poultry")

	projects, total, err := env.projects.List(ctx, ProjectFilter{Department: "livestock"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, projects, 2)

	projects, total, err = env.projects.List(ctx, ProjectFilter{OwnerId: owner.ID, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, projects, 1)

	bySlug, err := env.projects.GetBySlug(ctx, projects[0].Slug)
	require.NoError(t, err)
	assert.Equal(t, projects[0].Id, bySlug.Id)
}

func TestSlugify(t *testing.T) {
	assert.True(t, strings.HasPrefix(slugify("  Bee-keeping & Honey!! "), "bee-keeping-honey-"))
	assert.True(t, strings.HasPrefix(slugify("???"), "project-"))
	assert.NotEqual(t, slugify("same"), slugify("same"))
}
