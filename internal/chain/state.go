package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ProjectState 链上项目状态
type ProjectState struct {
	Owner         common.Address
	Goal          decimal.Decimal
	TotalFunding  decimal.Decimal
	IsActive      bool
	IsCompleted   bool
	FundsReleased bool
	Deadline      *time.Time // 合约未设置截止时间时为nil
}

// DeadlinePassed 截止时间是否已过
func (s ProjectState) DeadlinePassed(now time.Time) bool {
	return s.Deadline != nil && now.After(*s.Deadline)
}

// decodeProjectState 把 getProject 的原始返回值转换为 ProjectState
func decodeProjectState(out []interface{}, decimals int32) (ProjectState, error) {
	if len(out) != 7 {
		return ProjectState{}, fmt.Errorf("getProject returned %d values, want 7", len(out))
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return ProjectState{}, fmt.Errorf("getProject owner has type %T", out[0])
	}
	goal, err := asBigInt(out[1], "goal")
	if err != nil {
		return ProjectState{}, err
	}
	total, err := asBigInt(out[2], "totalFunding")
	if err != nil {
		return ProjectState{}, err
	}
	flags := make([]bool, 3)
	for i, name := range []string{"isActive", "isCompleted", "fundsReleased"} {
		b, ok := out[3+i].(bool)
		if !ok {
			return ProjectState{}, fmt.Errorf("getProject %s has type %T", name, out[3+i])
		}
		flags[i] = b
	}
	deadline, err := asBigInt(out[6], "deadline")
	if err != nil {
		return ProjectState{}, err
	}

	state := ProjectState{
		Owner:         owner,
		Goal:          ToDecimal(goal, decimals),
		TotalFunding:  ToDecimal(total, decimals),
		IsActive:      flags[0],
		IsCompleted:   flags[1],
		FundsReleased: flags[2],
	}
	if deadline.Sign() > 0 {
		t := time.Unix(deadline.Int64(), 0).UTC()
		state.Deadline = &t
	}
	return state, nil
}

func asBigInt(v interface{}, name string) (*big.Int, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return nil, fmt.Errorf("getProject %s has type %T", name, v)
	}
	return b, nil
}
