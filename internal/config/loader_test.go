package config

import (
	"errors"
	"os"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmp.WriteString(yaml); err != nil {
		t.Fatalf("failed to write YAML: %v", err)
	}
	tmp.Close()
	return tmp.Name()
}

func TestLoad_FullTableSpec(t *testing.T) {
	yaml := `
databases:
  - name: app
    tables:
      - name: events
        dump_before: true
        dump_storage: s3
        check_foreign_keys: true
        delete_strategy: older_than_days
        delete_older_than_days: 7
        date_column: created_at
        delete_batch_size: 100
        delete_batch_delay: 5
        run_optimize: true
`
	var cfg Config
	if err := cfg.Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.Databases) != 1 {
		t.Fatalf("expected 1 database group, got %d", len(cfg.Databases))
	}
	table := cfg.Databases[0].Tables[0]
	if table.DeleteStrategy != StrategyOlderThan {
		t.Errorf("delete_strategy = %q, want %q", table.DeleteStrategy, StrategyOlderThan)
	}
	if table.DeleteOlderThanDays != 7 {
		t.Errorf("delete_older_than_days = %d, want 7", table.DeleteOlderThanDays)
	}
	if table.DateColumn != "created_at" {
		t.Errorf("date_column = %q, want created_at", table.DateColumn)
	}
	if table.DeleteBatchSize != 100 || table.DeleteBatchDelay != 5 {
		t.Errorf("batch options = (%d, %d), want (100, 5)", table.DeleteBatchSize, table.DeleteBatchDelay)
	}
	if !table.DumpBefore || table.DumpStorage != StorageS3 {
		t.Errorf("dump options = (%v, %q), want (true, s3)", table.DumpBefore, table.DumpStorage)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	yaml := `
databases:
  - name: app
    tables:
      - name: logs
        delete_strategy: older_than_days
        delete_older_than_days: 30
`
	var cfg Config
	if err := cfg.Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	table := cfg.Databases[0].Tables[0]
	if table.DateColumn != DefaultDateColumn {
		t.Errorf("date_column default = %q, want %q", table.DateColumn, DefaultDateColumn)
	}
	if table.DumpStorage != StorageLocal {
		t.Errorf("dump_storage default = %q, want %q", table.DumpStorage, StorageLocal)
	}
	if table.DumpPath != "." {
		t.Errorf("dump_path default = %q, want \".\"", table.DumpPath)
	}
	if table.DeleteBatchDelay != 0 {
		t.Errorf("delete_batch_delay default = %d, want 0", table.DeleteBatchDelay)
	}
	if table.DeleteBatchSize != 0 {
		t.Errorf("delete_batch_size default = %d, want 0 (unbounded)", table.DeleteBatchSize)
	}
}

func TestLoad_RejectsUnknownStrategy(t *testing.T) {
	yaml := `
databases:
  - name: app
    tables:
      - name: logs
        delete_strategy: drop
`
	var cfg Config
	err := cfg.Load(writeConfig(t, yaml))
	if !errors.Is(err, ErrValidateConfig) {
		t.Fatalf("expected ErrValidateConfig, got %v", err)
	}
}

func TestLoad_MissingConditionIsNotALoadError(t *testing.T) {
	// The defect must surface in the run's result log, so the config
	// itself still loads.
	yaml := `
databases:
  - name: app
    tables:
      - name: logs
        delete_strategy: condition
`
	var cfg Config
	if err := cfg.Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Databases[0].Tables[0].DeleteCondition != "" {
		t.Fatalf("expected empty delete_condition")
	}
}

func TestLoad_OlderThanNeedsPositiveDays(t *testing.T) {
	yaml := `
databases:
  - name: app
    tables:
      - name: logs
        delete_strategy: older_than_days
`
	var cfg Config
	err := cfg.Load(writeConfig(t, yaml))
	if !errors.Is(err, ErrValidateConfig) {
		t.Fatalf("expected ErrValidateConfig, got %v", err)
	}
}

func TestLoad_VaultBlock(t *testing.T) {
	yaml := `
vault:
  address: "https://vault.example.com:8200"
  role_id: "abc"
  role_name: "dbmaint"
  dynamic_role: "database/creds/maintenance"
databases:
  - name: app
    tables:
      - name: logs
`
	var cfg Config
	if err := cfg.Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Vault == nil {
		t.Fatal("vault block not parsed")
	}
	if cfg.Vault.DynamicRole != "database/creds/maintenance" {
		t.Errorf("dynamic_role = %q, want database/creds/maintenance", cfg.Vault.DynamicRole)
	}
}

func TestLoad_VaultBlockNeedsAddress(t *testing.T) {
	yaml := `
vault:
  secret_path: "kv/data/mysql/maintenance"
databases:
  - name: app
    tables:
      - name: logs
`
	var cfg Config
	err := cfg.Load(writeConfig(t, yaml))
	if !errors.Is(err, ErrValidateConfig) {
		t.Fatalf("expected ErrValidateConfig, got %v", err)
	}
}

func TestLoad_VaultBlockNeedsOneCredentialSource(t *testing.T) {
	for name, extra := range map[string]string{
		"neither": "",
		"both": `  secret_path: "kv/data/mysql/maintenance"
  dynamic_role: "database/creds/maintenance"
`,
	} {
		t.Run(name, func(t *testing.T) {
			yaml := `
vault:
  address: "https://vault.example.com:8200"
` + extra + `
databases:
  - name: app
    tables:
      - name: logs
`
			var cfg Config
			err := cfg.Load(writeConfig(t, yaml))
			if !errors.Is(err, ErrValidateConfig) {
				t.Fatalf("expected ErrValidateConfig, got %v", err)
			}
		})
	}
}
