package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	TokenAddress   string
	MarketAddress  string
	PaymentAddress string
	PrivateKey     string
	FeedPath       string
	FeedDate       string
	StrictFeed     bool
	AutoApprove    bool
	PostgresDSN    string
	AuditOut       string
	SubmitRate     float64
	MaxRetries     int
	RetryBackoff   time.Duration
	CacheTTL       time.Duration
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed", "./data/stats.csv")
	v.SetDefault("audit-out", "./data/reconcile.jsonl")
	v.SetDefault("strict-feed", false)
	v.SetDefault("auto-approve", true)
	v.SetDefault("submit-rps", 0.5)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		TokenAddress:   v.GetString("token-address"),
		MarketAddress:  v.GetString("market-address"),
		PaymentAddress: v.GetString("payment-address"),
		PrivateKey:     v.GetString("private-key"),
		FeedPath:       v.GetString("feed"),
		FeedDate:       v.GetString("date"),
		StrictFeed:     v.GetBool("strict-feed"),
		AutoApprove:    v.GetBool("auto-approve"),
		PostgresDSN:    v.GetString("pg-dsn"),
		AuditOut:       v.GetString("audit-out"),
		SubmitRate:     v.GetFloat64("submit-rps"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		LogLevel:       v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.TokenAddress == "" {
		return fmt.Errorf("token contract address is required")
	}
	if c.MarketAddress == "" {
		return fmt.Errorf("market contract address is required")
	}
	if c.PaymentAddress == "" {
		return fmt.Errorf("payment contract address is required")
	}
	return nil
}
