package maintenance

import (
	"context"
	"fmt"

	"github.com/kebairia/dbmaint/internal/config"
	"github.com/kebairia/dbmaint/internal/database"
	"github.com/kebairia/dbmaint/internal/dump"
	"github.com/kebairia/dbmaint/internal/logger"
	"github.com/kebairia/dbmaint/internal/storage"
	"github.com/kebairia/dbmaint/internal/vault"
)

// Run executes one maintenance pass over every configured database group.
// It owns the single SQL session for the run and closes it on every exit
// path once it has been opened.
func Run(ctx context.Context, configPath string, dryRun bool, log logger.Logger) error {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath, "databases", len(cfg.Databases), "dry_run", dryRun)

	conn, err := resolveConnection(ctx, &cfg)
	if err != nil {
		return err
	}

	sess, err := database.Connect(ctx, conn, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	exec := database.NewExecutor(sess, log, dryRun)
	dumper := dump.New(conn, newUploader(ctx, &cfg, dryRun, log), log, dryRun)
	processor := NewProcessor(exec, sess, dumper, log)

	results := NewResultLog()
	runGroups(ctx, sess, processor, &cfg, results, log)

	log.Info("Maintenance results:")
	for _, entry := range results.Entries() {
		log.Info(entry)
	}
	return nil
}

// runGroups walks the database groups strictly in order, selecting each
// group's database before touching its tables. A failed selection skips
// that group only.
func runGroups(ctx context.Context, sess database.Session, processor *Processor, cfg *config.Config, results *ResultLog, log logger.Logger) {
	for _, group := range cfg.Databases {
		if err := sess.Use(ctx, group.Name); err != nil {
			log.Error(results.Appendf("Error selecting database `%s`: %v", group.Name, err))
			continue
		}
		log.Info(results.Appendf("Using database `%s`", group.Name))

		for _, table := range group.Tables {
			processor.ProcessTable(ctx, group.Name, table, results)
		}
	}
}

// resolveConnection reads connection parameters from the environment and,
// when a vault block is configured, overrides the credentials from Vault.
func resolveConnection(ctx context.Context, cfg *config.Config) (config.Connection, error) {
	conn := config.LoadConnection()
	if cfg.Vault == nil {
		return conn, nil
	}

	opts := []vault.Option{vault.WithAddress(cfg.Vault.Address)}
	if cfg.Vault.Token != "" {
		opts = append(opts, vault.WithToken(cfg.Vault.Token))
	}
	if cfg.Vault.RoleID != "" && cfg.Vault.RoleName != "" {
		opts = append(opts, vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName))
	}
	client, err := vault.NewClient(ctx, opts...)
	if err != nil {
		return conn, fmt.Errorf("vault client init: %w", err)
	}

	// dynamic_role asks a database secrets engine for short-lived
	// credentials; secret_path reads a static KV secret.
	if cfg.Vault.DynamicRole != "" {
		creds, err := client.GetDynamicCredentials(ctx, cfg.Vault.DynamicRole)
		if err != nil {
			return conn, fmt.Errorf("vault read: %w", err)
		}
		conn.User = creds.Username
		conn.Password = creds.Password
		return conn, nil
	}

	secret, err := client.GetDatabaseSecret(ctx, cfg.Vault.SecretPath)
	if err != nil {
		return conn, fmt.Errorf("vault read: %w", err)
	}

	conn.User = secret.Username
	conn.Password = secret.Password
	if secret.Host != "" {
		conn.Host = secret.Host
	}
	if secret.Port != "" {
		conn.Port = secret.Port
	}
	return conn, nil
}

// newUploader builds the S3 store only when some table actually targets
// remote storage. A failed setup is logged and left nil: upload failures
// are never fatal to a table, and the dumper reports the missing store
// the same way.
func newUploader(ctx context.Context, cfg *config.Config, dryRun bool, log logger.Logger) dump.Uploader {
	if dryRun || !needsRemoteStorage(cfg) {
		return nil
	}
	store, err := storage.NewS3StoreFromEnv(ctx, log)
	if err != nil {
		log.Error("s3 store unavailable, dumps will stay local", "error", err.Error())
		return nil
	}
	return store
}

func needsRemoteStorage(cfg *config.Config) bool {
	for _, group := range cfg.Databases {
		for _, table := range group.Tables {
			if table.DumpBefore && table.DumpStorage == config.StorageS3 {
				return true
			}
		}
	}
	return false
}
