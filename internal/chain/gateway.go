package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/blues/agrofund/internal/config"
	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var errNoSigner = errors.New("no signer private key configured")

// DeployParams 链上创建项目的参数
type DeployParams struct {
	Owner        string
	Title        string
	Description  string
	Goal         decimal.Decimal
	Category     string
	Location     string
	TimelineDays int64
}

// DeployResult 链上创建结果
type DeployResult struct {
	ProjectId int64
	TxHash    string
}

// Gateway 托管合约的唯一客户端
//
// 持有一个长连接的 ethclient, 所有调用都带超时并经过熔断器。
// 链上失败统一返回 errs.KindExternalDependency。
type Gateway struct {
	mu       sync.RWMutex
	client   *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	signer   *ecdsa.PrivateKey
	cfg      config.ChainConfig
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// NewGateway 创建链网关
//
// 启动时节点不可达只记录警告, 读路径会自动降级。
func NewGateway(cfg config.ChainConfig) (*Gateway, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	parsedABI, err := loadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}
	if err := checkABI(parsedABI); err != nil {
		return nil, err
	}

	var signer *ecdsa.PrivateKey
	if cfg.PrivateKey != "" {
		signer, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	} else {
		logger.Warn("Chain signer not configured, deployments will fail")
	}

	logger.Info("Creating chain client connection (RPC: %s, chain id: %d)", cfg.RpcUrl, cfg.ChainId)
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	g := &Gateway{
		client:   client,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		abi:      parsedABI,
		address:  address,
		signer:   signer,
		cfg:      cfg,
		breaker:  newBreaker(cfg.Breaker),
	}

	if err := g.Health(context.Background()); err != nil {
		logger.Warn("Chain client connection test failed, continuing in degraded mode: %v", err)
	} else {
		logger.Info("Successfully created chain client")
	}
	return g, nil
}

func newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	metrics.SetBreakerState(gobreaker.StateClosed.String())
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "chain",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s changed from %s to %s", name, from.String(), to.String())
			metrics.SetBreakerState(to.String())
		},
	})
}

// call 带超时和熔断执行一次链调用
func (g *Gateway) call(ctx context.Context, method string, timeout time.Duration, fn func(ctx context.Context) error) error {
	started := time.Now()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := g.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	switch {
	case err == nil:
		metrics.ObserveChainCall(method, "ok", started)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ObserveChainCall(method, "rejected", started)
		return errs.External(err, "chain gateway unavailable: %s rejected by circuit breaker", method)
	default:
		metrics.ObserveChainCall(method, "error", started)
		return errs.External(err, "chain call %s failed", method)
	}
}

// DeployProject 在链上创建项目, 等待交易上链后从 ProjectCreated 事件中取出链上ID
func (g *Gateway) DeployProject(ctx context.Context, p DeployParams) (DeployResult, error) {
	if !common.IsHexAddress(p.Owner) {
		return DeployResult{}, errs.Validation("invalid owner address %q", p.Owner)
	}
	goal, err := ToBaseUnits(p.Goal, g.cfg.Decimals)
	if err != nil {
		return DeployResult{}, errs.Validation("invalid funding goal: %v", err)
	}

	var result DeployResult
	err = g.call(ctx, "createProject", g.cfg.DeployTimeout, func(ctx context.Context) error {
		receipt, err := g.transact(ctx, "createProject",
			common.HexToAddress(p.Owner), p.Title, p.Description, goal, p.Category, p.Location, big.NewInt(p.TimelineDays))
		if err != nil {
			return err
		}
		id, err := projectIdFromLogs(receipt.Logs, g.address, g.abi.Events["ProjectCreated"].ID)
		if err != nil {
			return err
		}
		result = DeployResult{ProjectId: id, TxHash: receipt.TxHash.Hex()}
		return nil
	})
	if err != nil {
		return DeployResult{}, err
	}

	logger.Info("Project deployed on chain (chain id: %d, tx: %s)", result.ProjectId, result.TxHash)
	return result, nil
}

// ReadProjectState 读取链上项目状态
func (g *Gateway) ReadProjectState(ctx context.Context, onChainId int64) (ProjectState, error) {
	var state ProjectState
	err := g.call(ctx, "getProject", g.cfg.CallTimeout, func(ctx context.Context) error {
		var out []interface{}
		if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getProject", big.NewInt(onChainId)); err != nil {
			return err
		}
		decoded, err := decodeProjectState(out, g.cfg.Decimals)
		if err != nil {
			return err
		}
		state = decoded
		return nil
	})
	return state, err
}

// SetProjectActive 激活或停用链上项目, 返回交易哈希
func (g *Gateway) SetProjectActive(ctx context.Context, onChainId int64, active bool) (string, error) {
	var txHash string
	err := g.call(ctx, "setProjectActive", g.cfg.DeployTimeout, func(ctx context.Context) error {
		receipt, err := g.transact(ctx, "setProjectActive", big.NewInt(onChainId), active)
		if err != nil {
			return err
		}
		txHash = receipt.TxHash.Hex()
		return nil
	})
	return txHash, err
}

// ReadContributorCount 读取链上出资人数
func (g *Gateway) ReadContributorCount(ctx context.Context, onChainId int64) (int64, error) {
	value, err := g.readUint(ctx, "getContributorCount", big.NewInt(onChainId))
	if err != nil {
		return 0, err
	}
	return value.Int64(), nil
}

// ReadContributorAmount 读取某个地址在项目中的出资额
func (g *Gateway) ReadContributorAmount(ctx context.Context, onChainId int64, contributor string) (decimal.Decimal, error) {
	if !common.IsHexAddress(contributor) {
		return decimal.Zero, errs.Validation("invalid contributor address %q", contributor)
	}
	value, err := g.readUint(ctx, "getContribution", big.NewInt(onChainId), common.HexToAddress(contributor))
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(value, g.cfg.Decimals), nil
}

// ReadEscrowBalance 读取托管余额
func (g *Gateway) ReadEscrowBalance(ctx context.Context, onChainId int64) (decimal.Decimal, error) {
	value, err := g.readUint(ctx, "getEscrowBalance", big.NewInt(onChainId))
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(value, g.cfg.Decimals), nil
}

// BaseUnits 展示金额转换为链上最小单位字符串
func (g *Gateway) BaseUnits(amount decimal.Decimal) (string, error) {
	v, err := ToBaseUnits(amount, g.cfg.Decimals)
	if err != nil {
		return "", errs.Validation("invalid amount: %v", err)
	}
	return v.String(), nil
}

// Health 检查节点连接
func (g *Gateway) Health(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client == nil {
		return fmt.Errorf("chain client closed")
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	if _, err := g.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	return nil
}

// Close 关闭连接
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
	logger.Info("Chain gateway closed")
}

func (g *Gateway) readUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var value *big.Int
	err := g.call(ctx, method, g.cfg.CallTimeout, func(ctx context.Context) error {
		var out []interface{}
		if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
			return err
		}
		if len(out) != 1 {
			return fmt.Errorf("%s returned %d values, want 1", method, len(out))
		}
		v, ok := out[0].(*big.Int)
		if !ok || v == nil {
			return fmt.Errorf("%s returned %T", method, out[0])
		}
		value = v
		return nil
	})
	return value, err
}

// transact 发送交易并等待上链
func (g *Gateway) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if g.signer == nil {
		return nil, errNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(g.signer, big.NewInt(g.cfg.ChainId))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := g.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}
	logger.Debug("Sent %s transaction %s, waiting to be mined", method, tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s transaction %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}
	return receipt, nil
}

// projectIdFromLogs 从回执日志中解析 ProjectCreated 的链上项目ID
func projectIdFromLogs(logs []*types.Log, contract common.Address, eventId common.Hash) (int64, error) {
	for _, log := range logs {
		if log == nil || log.Address != contract || len(log.Topics) < 2 {
			continue
		}
		if log.Topics[0] != eventId {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[1].Bytes()).Int64(), nil
	}
	return 0, fmt.Errorf("ProjectCreated event not found in receipt")
}
