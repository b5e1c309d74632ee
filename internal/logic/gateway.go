package logic

import (
	"context"

	"github.com/blues/agrofund/internal/chain"
	"github.com/shopspring/decimal"
)

// ChainGateway 链网关, 由 chain.Gateway 实现
type ChainGateway interface {
	DeployProject(ctx context.Context, params chain.DeployParams) (chain.DeployResult, error)
	ReadProjectState(ctx context.Context, onChainId int64) (chain.ProjectState, error)
	SetProjectActive(ctx context.Context, onChainId int64, active bool) (string, error)
	ReadContributorCount(ctx context.Context, onChainId int64) (int64, error)
	ReadContributorAmount(ctx context.Context, onChainId int64, contributor string) (decimal.Decimal, error)
	ReadEscrowBalance(ctx context.Context, onChainId int64) (decimal.Decimal, error)
	BaseUnits(amount decimal.Decimal) (string, error)
}

var _ ChainGateway = (*chain.Gateway)(nil)
