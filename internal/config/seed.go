package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SeedConfig holds configuration for the seed command.
type SeedConfig struct {
	RPCURL       string
	Token        string
	Holders      []string
	Block        uint64
	Discover     bool
	DiscoverFrom uint64
	BatchSize    uint64
	Out          string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadSeed merges config file, environment variables, and flags into SeedConfig.
func LoadSeed(cfgFile string, flags *pflag.FlagSet) (SeedConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/genesis.json")
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return SeedConfig{}, err
	}

	return SeedConfig{
		RPCURL:       v.GetString("rpc"),
		Token:        v.GetString("token"),
		Holders:      getStringSlice(v, "holder"),
		Block:        v.GetUint64("block"),
		Discover:     v.GetBool("discover"),
		DiscoverFrom: v.GetUint64("discover-from"),
		BatchSize:    v.GetUint64("batch-size"),
		Out:          v.GetString("out"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
