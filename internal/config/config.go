// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Networks  []NetworkConfig `mapstructure:"networks"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Tokens    []TokenConfig   `mapstructure:"tokens"`
	Routes    []RouteConfig   `mapstructure:"routes"`
	Detection DetectionConfig `mapstructure:"detection"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// NetworkConfig describes one blockchain network the engine watches.
type NetworkConfig struct {
	Name            string `mapstructure:"name"`
	ChainID         uint64 `mapstructure:"chain_id"`
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"` // deployed execution contract
}

// ContractAddressHex returns the execution contract address.
func (c *NetworkConfig) ContractAddressHex() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// VenueConfig describes one DEX on one network.
type VenueConfig struct {
	ID             string  `mapstructure:"id"`
	Network        string  `mapstructure:"network"`
	Name           string  `mapstructure:"name"`
	RouterAddress  string  `mapstructure:"router_address"`
	FactoryAddress string  `mapstructure:"factory_address"`
	FeeBps         float64 `mapstructure:"fee_bps"`
	MinTradeAmount float64 `mapstructure:"min_trade_amount"`
	MaxTradeAmount float64 `mapstructure:"max_trade_amount"`
	QuoteRateLimit int     `mapstructure:"quote_rate_limit"` // requests per minute
}

// RouterAddressHex returns the router address as common.Address.
func (c *VenueConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// FeeBpsDecimal returns the venue fee in basis points as decimal.
func (c *VenueConfig) FeeBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FeeBps)
}

// TokenConfig describes one tradable token on one network.
type TokenConfig struct {
	Symbol      string `mapstructure:"symbol"`
	Network     string `mapstructure:"network"`
	Address     string `mapstructure:"address"`
	Decimals    uint8  `mapstructure:"decimals"`
	Blacklisted bool   `mapstructure:"blacklisted"`
}

// AddressHex returns the token address as common.Address.
func (c *TokenConfig) AddressHex() common.Address {
	return common.HexToAddress(c.Address)
}

// RouteConfig describes one watched detection tuple:
// (network, pair, venueA, venueB) with the candidate input amount.
type RouteConfig struct {
	Network  string  `mapstructure:"network"`
	Base     string  `mapstructure:"base"`
	Quote    string  `mapstructure:"quote"`
	VenueA   string  `mapstructure:"venue_a"`
	VenueB   string  `mapstructure:"venue_b"`
	AmountIn float64 `mapstructure:"amount_in"` // in base token units
}

// DetectionConfig holds detector tuning.
type DetectionConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	QuoteTimeout  time.Duration `mapstructure:"quote_timeout"`
	MinProfitBps  float64       `mapstructure:"min_profit_bps"`
	ExpiryHorizon time.Duration `mapstructure:"expiry_horizon"`
}

// MinProfitBpsDecimal returns the detection threshold as decimal bps.
func (c *DetectionConfig) MinProfitBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitBps)
}

// ExecutionConfig holds coordinator and settlement tuning.
type ExecutionConfig struct {
	Workers               int           `mapstructure:"workers"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	GasCeilingGwei        float64       `mapstructure:"gas_ceiling_gwei"`
	StalenessToleranceBps float64       `mapstructure:"staleness_tolerance_bps"`
	Cooldown              time.Duration `mapstructure:"cooldown"`
	DeadlineWindow        time.Duration `mapstructure:"deadline_window"`
	ConfirmTimeout        time.Duration `mapstructure:"confirm_timeout"`
	ConfirmPollInterval   time.Duration `mapstructure:"confirm_poll_interval"`
	ExecutorPrivateKey    string        `mapstructure:"executor_private_key"`
	DryRun                bool          `mapstructure:"dry_run"`
}

// GasCeilingWei returns the gas price ceiling in wei.
func (c *ExecutionConfig) GasCeilingWei() *big.Int {
	gwei := decimal.NewFromFloat(c.GasCeilingGwei)
	wei := gwei.Mul(decimal.New(1, 9)) // 1 gwei = 1e9 wei
	return wei.BigInt()
}

// StalenessToleranceBpsDecimal returns the re-quote tolerance as decimal bps.
func (c *ExecutionConfig) StalenessToleranceBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.StalenessToleranceBps)
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // "memory" or "postgres"
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RedisConfig configures the distributed cool-down backend.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotifyConfig configures the notification sink.
type NotifyConfig struct {
	Console        bool     `mapstructure:"console"`
	TelegramToken  string   `mapstructure:"telegram_token"`
	TelegramChatID string   `mapstructure:"telegram_chat_id"`
	Events         []string `mapstructure:"events"` // empty = all events
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Detection
	v.BindEnv("detection.min_profit_bps", "ARB_MIN_PROFIT_BPS")
	v.BindEnv("detection.interval", "ARB_DETECTION_INTERVAL")

	// Execution
	v.BindEnv("execution.gas_ceiling_gwei", "ARB_GAS_CEILING_GWEI")
	v.BindEnv("execution.executor_private_key", "ARB_EXECUTOR_KEY", "EXECUTOR_PRIVATE_KEY")
	v.BindEnv("execution.dry_run", "ARB_DRY_RUN")

	// Storage
	v.BindEnv("storage.driver", "ARB_STORAGE_DRIVER")
	v.BindEnv("storage.dsn", "ARB_DATABASE_DSN", "DATABASE_URL")

	// Redis
	v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Notify
	v.BindEnv("notify.telegram_token", "ARB_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.telegram_chat_id", "ARB_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "evm-arbitrage-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Detection defaults
	v.SetDefault("detection.interval", "3s")
	v.SetDefault("detection.quote_timeout", "2s")
	v.SetDefault("detection.min_profit_bps", 100) // 1%
	v.SetDefault("detection.expiry_horizon", "30s")

	// Execution defaults
	v.SetDefault("execution.workers", 4)
	v.SetDefault("execution.poll_interval", "500ms")
	v.SetDefault("execution.gas_ceiling_gwei", 150)
	v.SetDefault("execution.staleness_tolerance_bps", 0) // refreshed profit must still clear the detection threshold
	v.SetDefault("execution.cooldown", "60s")
	v.SetDefault("execution.deadline_window", "30s")
	v.SetDefault("execution.confirm_timeout", "5m")
	v.SetDefault("execution.confirm_poll_interval", "3s")
	v.SetDefault("execution.dry_run", true)

	// Storage defaults
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.ssl_mode", "disable")
	v.SetDefault("storage.max_conns", 8)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	// Notify defaults
	v.SetDefault("notify.console", true)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "evm-arbitrage-bot")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}

	networks := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("network name is required")
		}
		if n.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url is required", n.Name)
		}
		if n.ContractAddress != "" && !common.IsHexAddress(n.ContractAddress) {
			return fmt.Errorf("network %s: invalid contract_address %s", n.Name, n.ContractAddress)
		}
		networks[n.Name] = true
	}

	venues := make(map[string]bool, len(c.Venues))
	for _, ve := range c.Venues {
		if !networks[ve.Network] {
			return fmt.Errorf("venue %s: unknown network %s", ve.ID, ve.Network)
		}
		if !common.IsHexAddress(ve.RouterAddress) {
			return fmt.Errorf("venue %s: invalid router_address %s", ve.ID, ve.RouterAddress)
		}
		if ve.FeeBps < 0 || ve.FeeBps > 1000 {
			return fmt.Errorf("venue %s: fee_bps out of range [0,1000]", ve.ID)
		}
		venues[ve.ID] = true
	}

	tokens := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if !networks[t.Network] {
			return fmt.Errorf("token %s: unknown network %s", t.Symbol, t.Network)
		}
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %s: invalid address %s", t.Symbol, t.Address)
		}
		tokens[t.Network+"/"+t.Symbol] = true
	}

	for i, r := range c.Routes {
		if !venues[r.VenueA] || !venues[r.VenueB] {
			return fmt.Errorf("route %d: unknown venue %s or %s", i, r.VenueA, r.VenueB)
		}
		if r.VenueA == r.VenueB {
			return fmt.Errorf("route %d: venue_a and venue_b must differ", i)
		}
		if !tokens[r.Network+"/"+r.Base] || !tokens[r.Network+"/"+r.Quote] {
			return fmt.Errorf("route %d: unknown token %s or %s on %s", i, r.Base, r.Quote, r.Network)
		}
		if r.AmountIn <= 0 {
			return fmt.Errorf("route %d: amount_in must be positive", i)
		}
	}

	// Ticker periods; a zero value would panic at startup.
	if c.Detection.Interval <= 0 {
		return fmt.Errorf("detection.interval must be positive")
	}
	if c.Execution.PollInterval <= 0 {
		return fmt.Errorf("execution.poll_interval must be positive")
	}
	if c.Execution.ConfirmPollInterval <= 0 {
		return fmt.Errorf("execution.confirm_poll_interval must be positive")
	}

	if c.Execution.Workers <= 0 {
		return fmt.Errorf("execution.workers must be positive")
	}
	if c.Storage.Driver != "memory" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver must be memory or postgres, got %s", c.Storage.Driver)
	}

	return nil
}
