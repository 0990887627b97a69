package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunConfig holds configuration values for the run command, loaded from
// flags, env, or config file.
type RunConfig struct {
	RPCURL     string
	PrivateKey string
	Owner      string

	BaseToken  string
	QuoteToken string
	BaseFeed   string
	QuoteFeed  string

	RungCount           uint32
	InitialDeviationBps uint32
	TakeProfitBps       uint32
	PriceGrowthBps      uint32
	SizeGrowthBps       uint32
	BaseRungSize        string
	SubsequentRungSize  string

	ListenAddr  string
	JournalPath string
	PostgresDSN string
	InstanceID  string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into RunConfig.
// Both the run and deploy commands share this surface.
func Load(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return RunConfig{}, err
	}

	v.SetDefault("rung-count", uint32(10))
	v.SetDefault("initial-deviation-bps", uint32(100))
	v.SetDefault("take-profit-bps", uint32(200))
	v.SetDefault("price-growth-bps", uint32(11000))
	v.SetDefault("size-growth-bps", uint32(500))
	v.SetDefault("listen", ":8080")
	v.SetDefault("journal", "./data/trades.jsonl")
	v.SetDefault("log-level", "info")

	cfg := RunConfig{
		RPCURL:              v.GetString("rpc"),
		PrivateKey:          v.GetString("private-key"),
		Owner:               v.GetString("owner"),
		BaseToken:           v.GetString("base-token"),
		QuoteToken:          v.GetString("quote-token"),
		BaseFeed:            v.GetString("base-feed"),
		QuoteFeed:           v.GetString("quote-feed"),
		RungCount:           v.GetUint32("rung-count"),
		InitialDeviationBps: v.GetUint32("initial-deviation-bps"),
		TakeProfitBps:       v.GetUint32("take-profit-bps"),
		PriceGrowthBps:      v.GetUint32("price-growth-bps"),
		SizeGrowthBps:       v.GetUint32("size-growth-bps"),
		BaseRungSize:        v.GetString("base-rung-size"),
		SubsequentRungSize:  v.GetString("subsequent-rung-size"),
		ListenAddr:          v.GetString("listen"),
		JournalPath:         v.GetString("journal"),
		PostgresDSN:         v.GetString("postgres-dsn"),
		InstanceID:          v.GetString("instance-id"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("GRIDD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
