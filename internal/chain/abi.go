package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// 众筹托管合约ABI, 只包含网关用到的方法和事件
const escrowABI = `[
	{
		"type": "function",
		"name": "createProject",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "title", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "goal", "type": "uint256"},
			{"name": "category", "type": "string"},
			{"name": "location", "type": "string"},
			{"name": "timeline", "type": "uint256"}
		],
		"outputs": [{"name": "projectId", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getProject",
		"stateMutability": "view",
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"outputs": [
			{"name": "owner", "type": "address"},
			{"name": "goal", "type": "uint256"},
			{"name": "totalFunding", "type": "uint256"},
			{"name": "isActive", "type": "bool"},
			{"name": "isCompleted", "type": "bool"},
			{"name": "fundsReleased", "type": "bool"},
			{"name": "deadline", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "setProjectActive",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "projectId", "type": "uint256"},
			{"name": "active", "type": "bool"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getContributorCount",
		"stateMutability": "view",
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getContribution",
		"stateMutability": "view",
		"inputs": [
			{"name": "projectId", "type": "uint256"},
			{"name": "contributor", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getEscrowBalance",
		"stateMutability": "view",
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "ProjectCreated",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "projectId", "type": "uint256"},
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": false, "name": "goal", "type": "uint256"}
		]
	}
]`

// loadABI 读取合约ABI, path为空时使用内置ABI
//
// 文件既可以是纯ABI数组, 也可以是带 "abi" 字段的完整编译输出。
func loadABI(path string) (abi.ABI, error) {
	if path == "" {
		return abi.JSON(strings.NewReader(escrowABI))
	}

	abiData, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}

	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(abiData, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// requiredMethods 网关依赖的合约方法
var requiredMethods = []string{
	"createProject", "getProject", "setProjectActive",
	"getContributorCount", "getContribution", "getEscrowBalance",
}

func checkABI(parsed abi.ABI) error {
	for _, name := range requiredMethods {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("contract ABI is missing method %s", name)
		}
	}
	if _, ok := parsed.Events["ProjectCreated"]; !ok {
		return fmt.Errorf("contract ABI is missing event ProjectCreated")
	}
	return nil
}
