package config

// Package config provides a reusable loader for chainkernel configuration
// files and environment variables, built on github.com/spf13/viper the same
// way the teacher's cmd-level loader does: a YAML base file merged with an
// optional named override, then environment variables layered on top.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"chainkernel/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the node-level configuration surrounding the execution core:
// genesis/chain identity, VM sandbox limits, storage location, and logging.
// The peer-to-peer and consensus layers are out of the kernel's scope per
// spec.md §1, so this struct carries only what the kernel itself consumes —
// no listen address, peer discovery, or block-production fields.
type Config struct {
	Chain struct {
		ID          string `mapstructure:"id" json:"id"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
	} `mapstructure:"chain" json:"chain"`

	VM struct {
		MaxGasPerBlock  uint64 `mapstructure:"max_gas_per_block" json:"max_gas_per_block"`
		QueryDepth      uint32 `mapstructure:"query_depth" json:"query_depth"`
		MessageDepth    uint32 `mapstructure:"message_depth" json:"message_depth"`
		WasmerBackend   bool   `mapstructure:"wasmer_backend" json:"wasmer_backend"`
	} `mapstructure:"vm" json:"vm"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHAINKERNEL_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAINKERNEL_ENV", ""))
}
