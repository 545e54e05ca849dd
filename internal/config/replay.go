package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Ops         string
	Genesis     string
	Out         string
	Errors      string
	StateFile   string
	PGDSN       string
	StateName   string
	BatchSize   int
	MetricsAddr string
	LogLevel    string
	Ledger      LedgerConfig
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/errors.jsonl")
		v.SetDefault("state-file", "./data/state.json")
		v.SetDefault("state-name", "ledger")
		v.SetDefault("batch-size", 500)
		setLedgerDefaults(v)
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Ops:         v.GetString("ops"),
		Genesis:     v.GetString("genesis"),
		Out:         v.GetString("out"),
		Errors:      v.GetString("errors"),
		StateFile:   v.GetString("state-file"),
		PGDSN:       v.GetString("pg-dsn"),
		StateName:   v.GetString("state-name"),
		BatchSize:   v.GetInt("batch-size"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		Ledger:      loadLedger(v),
	}, nil
}
