package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tipLedger/internal/ledger"
)

// EnvPrefix is prepended to every environment variable the loaders read.
const EnvPrefix = "LEDGER"

// LedgerConfig holds the addresses and initial rates of the ledger.
type LedgerConfig struct {
	Token       string
	StakingPool string
	Router      string
	Treasury    string
	BurnSink    string
	Admin       string
	BurnRate    uint64
	FundRate    uint64
	RewardRate  uint64
}

// EngineConfig parses the configured addresses.
func (c LedgerConfig) EngineConfig() (ledger.Config, error) {
	cfg := ledger.Config{
		BurnRate:   c.BurnRate,
		FundRate:   c.FundRate,
		RewardRate: c.RewardRate,
	}
	fields := []struct {
		key   string
		value string
		dst   *common.Address
	}{
		{"token", c.Token, &cfg.Token},
		{"staking-pool", c.StakingPool, &cfg.StakingPool},
		{"router", c.Router, &cfg.Router},
		{"treasury", c.Treasury, &cfg.Treasury},
		{"burn-sink", c.BurnSink, &cfg.BurnSink},
		{"admin", c.Admin, &cfg.Admin},
	}
	for _, field := range fields {
		if !common.IsHexAddress(field.value) {
			return ledger.Config{}, fmt.Errorf("%s: invalid address %q", field.key, field.value)
		}
		*field.dst = common.HexToAddress(field.value)
	}
	if cfg.StakingPool == cfg.Router {
		return ledger.Config{}, fmt.Errorf("staking-pool and router must differ")
	}
	return cfg, nil
}

func setLedgerDefaults(v *viper.Viper) {
	v.SetDefault("burn-sink", common.Address{}.Hex())
	v.SetDefault("burn-rate", uint64(10))
	v.SetDefault("fund-rate", uint64(45))
	v.SetDefault("reward-rate", uint64(45))
}

func loadLedger(v *viper.Viper) LedgerConfig {
	return LedgerConfig{
		Token:       v.GetString("token"),
		StakingPool: v.GetString("staking-pool"),
		Router:      v.GetString("router"),
		Treasury:    v.GetString("treasury"),
		BurnSink:    v.GetString("burn-sink"),
		Admin:       v.GetString("admin"),
		BurnRate:    v.GetUint64("burn-rate"),
		FundRate:    v.GetUint64("fund-rate"),
		RewardRate:  v.GetUint64("reward-rate"),
	}
}

// newViper builds a viper instance with env binding and defaults applied,
// then layers flags and the config file on top.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

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

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
