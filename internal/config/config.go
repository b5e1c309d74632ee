package config

import (
	"strings"
	"time"

	"github.com/blues/agrofund/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Platform PlatformConfig `mapstructure:"platform"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Debug    bool   `mapstructure:"debug"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig 托管合约所在链的配置
type ChainConfig struct {
	RpcUrl          string        `mapstructure:"rpc_url"`          // RPC节点URL
	ChainId         int64         `mapstructure:"chain_id"`         // 链ID
	PrivateKey      string        `mapstructure:"private_key"`      // 平台部署账户私钥
	ContractAddress string        `mapstructure:"contract_address"` // 众筹托管合约地址
	ABIPath         string        `mapstructure:"abi_path"`         // 可选, 为空时使用内置ABI
	Decimals        int32         `mapstructure:"decimals"`         // 链上金额精度
	CallTimeout     time.Duration `mapstructure:"call_timeout"`     // 只读调用超时
	DeployTimeout   time.Duration `mapstructure:"deploy_timeout"`   // 部署交易等待上链超时
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig 链调用熔断配置
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// PlatformConfig 平台业务规则
type PlatformConfig struct {
	MinFundingGoal string `mapstructure:"min_funding_goal"`
}

// MinGoal 返回最低众筹目标, 配置非法时回退到默认值
func (p PlatformConfig) MinGoal() decimal.Decimal {
	d, err := decimal.NewFromString(p.MinFundingGoal)
	if err != nil {
		return decimal.NewFromInt(100)
	}
	return d
}

type CacheConfig struct {
	Driver  string        `mapstructure:"driver"` // memory, redis
	UserTTL time.Duration `mapstructure:"user_ttl"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"` // 为空时只记录日志
	Timeout    time.Duration `mapstructure:"timeout"`
	PoolSize   int           `mapstructure:"pool_size"`
}

type TaskConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Interval  int  `mapstructure:"interval"`   // 秒
	BatchSize int  `mapstructure:"batch_size"` // 每轮最多处理的项目数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

var envReplacer = strings.NewReplacer(".", "_")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "agrofund")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("chain.chain_id", 31337)
	v.SetDefault("chain.decimals", 18)
	v.SetDefault("chain.call_timeout", 10*time.Second)
	v.SetDefault("chain.deploy_timeout", 90*time.Second)
	v.SetDefault("chain.breaker.max_requests", 1)
	v.SetDefault("chain.breaker.interval", 30*time.Second)
	v.SetDefault("chain.breaker.timeout", 15*time.Second)
	v.SetDefault("chain.breaker.consecutive_failures", 5)
	v.SetDefault("platform.min_funding_goal", "100")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.user_ttl", 5*time.Minute)
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.pool_size", 16)
	v.SetDefault("task.enabled", true)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.batch_size", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 加载配置, 找不到配置文件时使用默认值和环境变量
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agrofund")

	cfg, err := load(v)
	if err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}
	return cfg
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// 自动读取环境变量, 例如 AGROFUND_CHAIN_RPC_URL
	v.SetEnvPrefix("agrofund")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file, using defaults: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
