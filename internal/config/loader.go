package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Delete strategies recognized per table.
const (
	StrategyTruncate  = "truncate"
	StrategyCondition = "condition"
	StrategyOlderThan = "older_than_days"
)

// Dump storage targets.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// DefaultDateColumn is compared against the age threshold when
// delete_strategy is older_than_days and no date_column is set.
const DefaultDateColumn = "date"

// Config represents the top-level YAML configuration file.
type Config struct {
	Vault     *VaultConfig    `mapstructure:"vault"     yaml:"vault,omitempty"`
	Databases []DatabaseGroup `mapstructure:"databases" yaml:"databases"`
}

// VaultConfig holds connection settings for HashiCorp Vault. When the
// block is present, database credentials are read from Vault instead of
// the environment: either a static KV secret (secret_path) or short-lived
// credentials issued by a database secrets engine (dynamic_role).
type VaultConfig struct {
	Address     string `mapstructure:"address"      yaml:"address"`
	Token       string `mapstructure:"token"        yaml:"token,omitempty"`
	RoleID      string `mapstructure:"role_id"      yaml:"role_id,omitempty"`
	RoleName    string `mapstructure:"role_name"    yaml:"role_name,omitempty"`
	SecretPath  string `mapstructure:"secret_path"  yaml:"secret_path,omitempty"`
	DynamicRole string `mapstructure:"dynamic_role" yaml:"dynamic_role,omitempty"`
}

// DatabaseGroup is one database and the tables maintained within it.
type DatabaseGroup struct {
	Name   string      `mapstructure:"name"   yaml:"name"`
	Tables []TableSpec `mapstructure:"tables" yaml:"tables"`
}

// TableSpec is the maintenance plan for a single table. Optional fields
// keep their zero value when absent; Load fills the documented defaults.
type TableSpec struct {
	Name                string `mapstructure:"name"                   yaml:"name"`
	DumpBefore          bool   `mapstructure:"dump_before"            yaml:"dump_before,omitempty"`
	DumpStorage         string `mapstructure:"dump_storage"           yaml:"dump_storage,omitempty"`
	DumpPath            string `mapstructure:"dump_path"              yaml:"dump_path,omitempty"`
	CheckForeignKeys    bool   `mapstructure:"check_foreign_keys"     yaml:"check_foreign_keys,omitempty"`
	DeleteStrategy      string `mapstructure:"delete_strategy"        yaml:"delete_strategy,omitempty"`
	DeleteCondition     string `mapstructure:"delete_condition"       yaml:"delete_condition,omitempty"`
	DeleteOlderThanDays int    `mapstructure:"delete_older_than_days" yaml:"delete_older_than_days,omitempty"`
	DateColumn          string `mapstructure:"date_column"            yaml:"date_column,omitempty"`
	DeleteBatchSize     int    `mapstructure:"delete_batch_size"      yaml:"delete_batch_size,omitempty"`
	DeleteBatchDelay    int    `mapstructure:"delete_batch_delay"     yaml:"delete_batch_delay,omitempty"`
	RunOptimize         bool   `mapstructure:"run_optimize"           yaml:"run_optimize,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper,
// unmarshals it into the Config struct, applies defaults and validates
// the result.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	c.applyDefaults()

	return c.Validate()
}

// applyDefaults fills the defaultable table options once, so later code
// never has to probe for absent keys.
func (c *Config) applyDefaults() {
	for gi := range c.Databases {
		for ti := range c.Databases[gi].Tables {
			table := &c.Databases[gi].Tables[ti]
			if table.DumpStorage == "" {
				table.DumpStorage = StorageLocal
			}
			if table.DumpPath == "" {
				table.DumpPath = "."
			}
			if table.DateColumn == "" {
				table.DateColumn = DefaultDateColumn
			}
		}
	}
}

// Validate checks strategy and storage names and the numeric options.
// A condition strategy without a predicate is deliberately NOT rejected
// here: the run must still visit the table and report the defect in its
// result log.
func (c *Config) Validate() error {
	if c.Vault != nil {
		if c.Vault.Address == "" {
			return fmt.Errorf("%w: vault block needs an address", ErrValidateConfig)
		}
		if (c.Vault.SecretPath == "") == (c.Vault.DynamicRole == "") {
			return fmt.Errorf("%w: vault block needs exactly one of secret_path or dynamic_role",
				ErrValidateConfig)
		}
	}
	for _, group := range c.Databases {
		if group.Name == "" {
			return fmt.Errorf("%w: database group without a name", ErrValidateConfig)
		}
		for _, table := range group.Tables {
			if table.Name == "" {
				return fmt.Errorf("%w: database %q has a table without a name", ErrValidateConfig, group.Name)
			}
			switch table.DeleteStrategy {
			case "", StrategyTruncate, StrategyCondition, StrategyOlderThan:
			default:
				return fmt.Errorf("%w: table %q: unknown delete_strategy %q",
					ErrValidateConfig, table.Name, table.DeleteStrategy)
			}
			switch table.DumpStorage {
			case StorageLocal, StorageS3:
			default:
				return fmt.Errorf("%w: table %q: unknown dump_storage %q",
					ErrValidateConfig, table.Name, table.DumpStorage)
			}
			if table.DeleteStrategy == StrategyOlderThan && table.DeleteOlderThanDays <= 0 {
				return fmt.Errorf("%w: table %q: older_than_days strategy needs delete_older_than_days > 0",
					ErrValidateConfig, table.Name)
			}
			if table.DeleteBatchSize < 0 {
				return fmt.Errorf("%w: table %q: negative delete_batch_size", ErrValidateConfig, table.Name)
			}
			if table.DeleteBatchDelay < 0 {
				return fmt.Errorf("%w: table %q: negative delete_batch_delay", ErrValidateConfig, table.Name)
			}
		}
	}
	return nil
}
