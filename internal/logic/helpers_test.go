package logic

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blues/agrofund/internal/cache"
	"github.com/blues/agrofund/internal/chain"
	"github.com/blues/agrofund/internal/database"
	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/model"
	"github.com/blues/agrofund/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeGateway 可编程的链网关
type fakeGateway struct {
	mu sync.Mutex

	deployResult chain.DeployResult
	deployErr    error
	deployCalls  int
	lastDeploy   chain.DeployParams

	state      chain.ProjectState
	stateErr   error
	stateCalls int

	count    int64
	countErr error

	setActiveTx  string
	setActiveErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		deployResult: chain.DeployResult{ProjectId: 42, TxHash: "0x" + repeat("d", 64)},
		state: chain.ProjectState{
			Goal:     decimal.NewFromInt(100),
			IsActive: true,
		},
		setActiveTx: "0x" + repeat("e", 64),
	}
}

func (f *fakeGateway) DeployProject(ctx context.Context, params chain.DeployParams) (chain.DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployCalls++
	f.lastDeploy = params
	if f.deployErr != nil {
		return chain.DeployResult{}, f.deployErr
	}
	return f.deployResult, nil
}

func (f *fakeGateway) ReadProjectState(ctx context.Context, onChainId int64) (chain.ProjectState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	return f.state, f.stateErr
}

func (f *fakeGateway) SetProjectActive(ctx context.Context, onChainId int64, active bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setActiveErr != nil {
		return "", f.setActiveErr
	}
	f.state.IsActive = active
	return f.setActiveTx, nil
}

func (f *fakeGateway) ReadContributorCount(ctx context.Context, onChainId int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeGateway) ReadContributorAmount(ctx context.Context, onChainId int64, contributor string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeGateway) ReadEscrowBalance(ctx context.Context, onChainId int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.TotalFunding, f.stateErr
}

func (f *fakeGateway) BaseUnits(amount decimal.Decimal) (string, error) {
	v, err := chain.ToBaseUnits(amount, 18)
	if err != nil {
		return "", errs.Validation("invalid amount: %v", err)
	}
	return v.String(), nil
}

// setChain 模拟链上状态变化
func (f *fakeGateway) setChain(fn func(s *chain.ProjectState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Close() {}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db            *gorm.DB
	gateway       *fakeGateway
	notifier      *recordingNotifier
	users         *UserLogic
	departments   *DepartmentLogic
	projects      *ProjectLogic
	contributions *ContributionLogic
	stats         *StatisticsLogic
	nextWallet    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDSN(t, ":memory:", 1)
}

// newFileTestEnv 基于文件的 sqlite, 允许多个连接并发写
func newFileTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "agrofund.db") + "?_busy_timeout=5000&_txlock=immediate"
	return newTestEnvWithDSN(t, dsn, 4)
}

func newTestEnvWithDSN(t *testing.T, dsn string, maxConns int) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		db:       db,
		gateway:  newFakeGateway(),
		notifier: &recordingNotifier{},
	}
	env.users = NewUserLogic(db, store, 0)
	env.departments = NewDepartmentLogic(db)
	env.projects = NewProjectLogic(db, env.gateway, env.departments, env.users, env.notifier, decimal.NewFromInt(100))
	env.contributions = NewContributionLogic(db, env.gateway, env.projects, env.notifier)
	env.stats = NewStatisticsLogic(db, env.gateway, env.projects)
	return env
}

func (e *testEnv) createUser(t *testing.T, role model.Role, department string, withWallet bool) *model.UserModel {
	t.Helper()
	e.nextWallet++
	user := &model.UserModel{
		Name:        fmt.Sprintf("user-%d", e.nextWallet),
		Email:       fmt.Sprintf("user-%d@example.com", e.nextWallet),
		Role:        role,
		Department:  department,
		IsActive:    true,
		MaxWorkload: 10,
	}
	if withWallet {
		wallet := fmt.Sprintf("0x%040x", e.nextWallet)
		user.WalletAddress = &wallet
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) farmer(t *testing.T) Actor {
	t.Helper()
	u := e.createUser(t, model.RoleFarmer, "", true)
	return Actor{ID: u.Id, Role: model.RoleFarmer}
}

func (e *testEnv) reviewer(t *testing.T, department string) Actor {
	t.Helper()
	u := e.createUser(t, model.RoleGovernment, department, false)
	return Actor{ID: u.Id, Role: model.RoleGovernment, Department: department}
}

func (e *testEnv) submit(t *testing.T, owner Actor, category string) *model.ProjectModel {
	t.Helper()
	p, err := e.projects.Create(context.Background(), owner, CreateProjectInput{
		Title:        "Drip irrigation for maize",
		Description:  "Two hectares",
		Category:     category,
		Location:     "Nakuru",
		FundingGoal:  decimal.NewFromInt(100),
		TimelineDays: 90,
	})
	require.NoError(t, err)
	return p
}

// activate 提交并审核通过一个项目, 链上部署成功
func (e *testEnv) activate(t *testing.T) *model.ProjectModel {
	t.Helper()
	p := e.submit(t, e.farmer(t), "crops")
	p, err := e.projects.Verify(context.Background(), e.reviewer(t, DepartmentCrops), p.Id, "")
	require.NoError(t, err)
	require.Equal(t, model.BlockchainStatusCreated, p.BlockchainStatus)
	return p
}

func (e *testEnv) setStatus(t *testing.T, id int64, status model.ProjectStatus) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.ProjectModel{}).Where("id = ?", id).Update("status", status).Error)
}

func (e *testEnv) reload(t *testing.T, id int64) *model.ProjectModel {
	t.Helper()
	var p model.ProjectModel
	require.NoError(t, e.db.First(&p, id).Error)
	return &p
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func txHash(c string) string {
	return "0x" + repeat(c, 64)
}

// forceClaim 模拟部署抢占, claimedAt 为 nil 表示旧数据没有抢占时间
func (e *testEnv) forceClaim(t *testing.T, id int64, status model.ProjectStatus, claimedAt *time.Time) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.ProjectModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                status,
		"blockchain_status":     model.BlockchainStatusPending,
		"blockchain_claim_id":   "crashed-worker",
		"blockchain_claimed_at": claimedAt,
	}).Error)
}
