package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToDecimal 把链上最小单位转换为展示单位
func ToDecimal(value *big.Int, decimals int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, 0).Shift(-decimals)
}

// ToBaseUnits 把展示单位转换为链上最小单位
//
// 负数和超出精度的小数会返回错误, 不做截断。
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", amount.String())
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount.String(), decimals)
	}
	return shifted.BigInt(), nil
}
