package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the shared values every command loads from flags, env, or
// config file.
type Config struct {
	Out      string
	PGDSN    string
	LogLevel string
}

// CreateConfig parameterizes the create command.
type CreateConfig struct {
	Config

	Deployer      string
	HookAddress   string
	ParentToken   string
	Name          string
	Symbol        string
	TokenURI      string
	Fee           uint32
	TickSpacing   int32
	Price         string
	TickLower     int
	TickUpper     int
	Seed          string
	Contribution  string
	TotalFeeBps   uint64
	ChildShareBps uint64
	SaltLimit     int
}

// SimulateConfig parameterizes the simulate command.
type SimulateConfig struct {
	Config

	ZeroForOne    bool
	Amount        string
	ExactOutput   bool
	Liquidity     string
	TotalFeeBps   uint64
	ChildShareBps uint64
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DERIVPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/records.jsonl")
	v.SetDefault("log-level", "info")

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

func shared(v *viper.Viper) Config {
	return Config{
		Out:      v.GetString("out"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}
}

// LoadCreate merges config file, environment variables, and flags for the
// create command.
func LoadCreate(cfgFile string, flags *pflag.FlagSet) (CreateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return CreateConfig{}, err
	}

	return CreateConfig{
		Config:        shared(v),
		Deployer:      v.GetString("deployer"),
		HookAddress:   v.GetString("hooks"),
		ParentToken:   v.GetString("parent"),
		Name:          v.GetString("name"),
		Symbol:        v.GetString("symbol"),
		TokenURI:      v.GetString("token-uri"),
		Fee:           v.GetUint32("fee"),
		TickSpacing:   v.GetInt32("tick-spacing"),
		Price:         v.GetString("price"),
		TickLower:     v.GetInt("tick-lower"),
		TickUpper:     v.GetInt("tick-upper"),
		Seed:          v.GetString("seed"),
		Contribution:  v.GetString("contribution"),
		TotalFeeBps:   v.GetUint64("total-fee-bps"),
		ChildShareBps: v.GetUint64("child-share-bps"),
		SaltLimit:     v.GetInt("salt-limit"),
	}, nil
}

// LoadSimulate merges config file, environment variables, and flags for the
// simulate command.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Config:        shared(v),
		ZeroForOne:    v.GetBool("zero-for-one"),
		Amount:        v.GetString("amount"),
		ExactOutput:   v.GetBool("exact-output"),
		Liquidity:     v.GetString("liquidity"),
		TotalFeeBps:   v.GetUint64("total-fee-bps"),
		ChildShareBps: v.GetUint64("child-share-bps"),
	}, nil
}
