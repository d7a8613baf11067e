// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/rovshanmuradov/solana-keeper/internal/rules"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	LogFile       string `mapstructure:"log_file"`
	DebugLogging  bool   `mapstructure:"debug_logging"`
	DryRun        bool   `mapstructure:"dry_run"`
	WalletAddress string `mapstructure:"wallet_address"`
	QuoteMint     string `mapstructure:"quote_mint"`
	NativeMint    string `mapstructure:"native_mint"`

	PriceFeedURL  string `mapstructure:"price_feed_url"`
	SwapURL       string `mapstructure:"swap_url"`
	WalletAPIURL  string `mapstructure:"wallet_api_url"`
	WebhookURL    string `mapstructure:"webhook_url"`
	AdvisorURL    string `mapstructure:"advisor_url"`
	DashboardAddr string `mapstructure:"dashboard_addr"`

	TickIntervalMs        int     `mapstructure:"tick_interval_ms"`
	BalanceCheckEvery     int     `mapstructure:"balance_check_every"`
	AdvisoryEvery         int     `mapstructure:"advisory_every"`
	MaxPositions          int     `mapstructure:"max_positions"`
	TradePercent          float64 `mapstructure:"trade_percent"`
	MinNativeBalanceSol   float64 `mapstructure:"min_native_balance_sol"`
	LowBalanceWarnMinutes int     `mapstructure:"low_balance_warn_minutes"`
	CooldownSeconds       int     `mapstructure:"cooldown_seconds"`
	HistoryMaxEntries     int     `mapstructure:"history_max_entries"`
	AlertCooldownMinutes  int     `mapstructure:"alert_cooldown_minutes"`
	MilestoneStepPercent  float64 `mapstructure:"milestone_step_percent"`

	DefaultTrailPercent float64           `mapstructure:"default_trail_percent"`
	TrailTiers          []rules.TrailTier `mapstructure:"trail_tiers"`

	SlippagePercent float64 `mapstructure:"slippage_percent"`
	Retries         int     `mapstructure:"retries"`
	HTTPTimeoutMs   int     `mapstructure:"http_timeout_ms"`
}

const (
	DefaultTickIntervalMs    = 5000
	DefaultBalanceCheckEvery = 12
	DefaultMaxPositions      = 3
	DefaultTradePercent      = 25.0
	DefaultCooldownSeconds   = 300
	DefaultHistoryMax        = 500
	DefaultMilestoneStep     = 25.0
	DefaultRetries           = 3
	DefaultHTTPTimeoutMs     = 10000

	// Mainnet mints used when the config does not override them.
	DefaultQuoteMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DefaultNativeMint = "So11111111111111111111111111111111111111112"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"data_dir":                 "data",
		"log_file":                 "logs/keeper.log",
		"dry_run":                  true,
		"quote_mint":               DefaultQuoteMint,
		"native_mint":              DefaultNativeMint,
		"dashboard_addr":           ":8080",
		"tick_interval_ms":         DefaultTickIntervalMs,
		"balance_check_every":      DefaultBalanceCheckEvery,
		"advisory_every":           0,
		"max_positions":            DefaultMaxPositions,
		"trade_percent":            DefaultTradePercent,
		"min_native_balance_sol":   0.05,
		"low_balance_warn_minutes": 60,
		"cooldown_seconds":         DefaultCooldownSeconds,
		"history_max_entries":      DefaultHistoryMax,
		"alert_cooldown_minutes":   5,
		"milestone_step_percent":   DefaultMilestoneStep,
		"default_trail_percent":    20.0,
		"slippage_percent":         5.0,
		"retries":                  DefaultRetries,
		"http_timeout_ms":          DefaultHTTPTimeoutMs,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	if len(cfg.TrailTiers) == 0 {
		cfg.TrailTiers = []rules.TrailTier{
			{MinProfitPercent: 100, TrailPercent: 5},
			{MinProfitPercent: 50, TrailPercent: 10},
			{MinProfitPercent: 0, TrailPercent: 20},
		}
	}
	// Tier scan expects the highest threshold first.
	sort.Slice(cfg.TrailTiers, func(i, j int) bool {
		return cfg.TrailTiers[i].MinProfitPercent > cfg.TrailTiers[j].MinProfitPercent
	})

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.WalletAddress == "" {
		return errors.New("missing wallet_address in configuration")
	}
	if cfg.PriceFeedURL == "" {
		return errors.New("missing price_feed_url in configuration")
	}
	if cfg.SwapURL == "" {
		return errors.New("missing swap_url in configuration")
	}
	if cfg.WalletAPIURL == "" {
		return errors.New("missing wallet_api_url in configuration")
	}
	for _, u := range []string{cfg.PriceFeedURL, cfg.SwapURL, cfg.WalletAPIURL} {
		if err := validateURLWithCache(u, "http"); err != nil {
			return errors.New("invalid API URL protocol")
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateURLWithCache(cfg.WebhookURL, "https"); err != nil {
			return errors.New("webhook URL must use HTTPS")
		}
	}
	if cfg.AdvisorURL != "" {
		if err := validateURLWithCache(cfg.AdvisorURL, "http"); err != nil {
			return errors.New("invalid advisor URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.TickIntervalMs <= 0 {
		return errors.New("invalid tick_interval_ms")
	}
	if cfg.BalanceCheckEvery <= 0 {
		return errors.New("invalid balance_check_every")
	}
	if cfg.AdvisoryEvery < 0 {
		return errors.New("invalid advisory_every")
	}
	if cfg.MaxPositions <= 0 {
		return errors.New("invalid max_positions")
	}
	if cfg.TradePercent <= 0 || cfg.TradePercent > 100 {
		return errors.New("trade_percent must be in (0, 100]")
	}
	if cfg.MinNativeBalanceSol < 0 {
		return errors.New("invalid min_native_balance_sol")
	}
	if cfg.LowBalanceWarnMinutes <= 0 {
		return errors.New("invalid low_balance_warn_minutes")
	}
	if cfg.CooldownSeconds < 0 {
		return errors.New("invalid cooldown_seconds")
	}
	if cfg.HistoryMaxEntries <= 0 {
		return errors.New("invalid history_max_entries")
	}
	if cfg.AlertCooldownMinutes < 0 {
		return errors.New("invalid alert_cooldown_minutes")
	}
	if cfg.MilestoneStepPercent < 0 {
		return errors.New("invalid milestone_step_percent")
	}
	if cfg.DefaultTrailPercent <= 0 || cfg.DefaultTrailPercent >= 100 {
		return errors.New("default_trail_percent must be in (0, 100)")
	}
	for _, tier := range cfg.TrailTiers {
		if tier.MinProfitPercent < 0 {
			return errors.New("trail tier min_profit_percent must be >= 0")
		}
		if tier.TrailPercent <= 0 || tier.TrailPercent >= 100 {
			return errors.New("trail tier trail_percent must be in (0, 100)")
		}
	}
	if cfg.SlippagePercent <= 0 || cfg.SlippagePercent >= 100 {
		return errors.New("slippage_percent must be in (0, 100)")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.HTTPTimeoutMs <= 0 {
		return errors.New("invalid http_timeout_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("SOLANA_KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envWallet := v.GetString("WALLET_ADDRESS")
	if envWallet != "" {
		cfg.WalletAddress = envWallet
	}

	envWebhook := v.GetString("WEBHOOK_URL")
	if envWebhook != "" {
		cfg.WebhookURL = envWebhook
	}

	envPriceFeed := v.GetString("PRICE_FEED_URL")
	if envPriceFeed != "" {
		cfg.PriceFeedURL = envPriceFeed
	}

	envSwap := v.GetString("SWAP_URL")
	if envSwap != "" {
		cfg.SwapURL = envSwap
	}

	envWalletAPI := v.GetString("WALLET_API_URL")
	if envWalletAPI != "" {
		cfg.WalletAPIURL = envWalletAPI
	}
	return nil
}
