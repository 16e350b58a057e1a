package maintenance

import (
	"context"
	"errors"

	"github.com/kebairia/dbmaint/internal/config"
	"github.com/kebairia/dbmaint/internal/database"
	"github.com/kebairia/dbmaint/internal/logger"
)

// Dumper produces a durable backup of one table before destructive steps.
type Dumper interface {
	DumpTable(ctx context.Context, db, table string, spec config.TableSpec) (string, error)
}

// Processor runs the fixed maintenance sequence for a single table:
// backup, foreign-key audit, delete, optimize. A failed backup aborts
// the remaining steps for that table; everything else is reported and
// the sequence continues.
type Processor struct {
	exec   sqlRunner
	sess   database.Session
	dumper Dumper
	engine *Engine
	log    logger.Logger
}

func NewProcessor(exec sqlRunner, sess database.Session, dumper Dumper, log logger.Logger) *Processor {
	return &Processor{
		exec:   exec,
		sess:   sess,
		dumper: dumper,
		engine: NewEngine(exec, log),
		log:    log,
	}
}

// ProcessTable appends one result line per step taken (or skipped) so the
// final log is a complete trail of decisions, not just actions.
func (p *Processor) ProcessTable(ctx context.Context, db string, table config.TableSpec, results *ResultLog) {
	p.log.Info(results.Appendf("Processing table `%s`.`%s`", db, table.Name))

	if table.DumpBefore {
		path, err := p.dumper.DumpTable(ctx, db, table.Name, table)
		if err != nil {
			// No durable backup exists; running any destructive step
			// now would leave no recovery path.
			p.log.Error(results.Appendf(
				"Error dumping table `%s`: %v. Skipping remaining steps.", table.Name, err))
			return
		}
		if p.exec.DryRun() {
			p.log.Info(results.Appendf("Would dump `%s`.`%s` to %s", db, table.Name, path))
		} else {
			p.log.Info(results.Appendf("Dumped `%s`.`%s` to %s", db, table.Name, path))
		}
	}

	if table.CheckForeignKeys {
		p.auditForeignKeys(ctx, db, table.Name, results)
	}

	if table.DeleteStrategy != "" {
		p.deleteRows(ctx, table, results)
	}

	if table.RunOptimize {
		p.optimize(ctx, table.Name, results)
	}
}

func (p *Processor) auditForeignKeys(ctx context.Context, db, table string, results *ResultLog) {
	keys, err := auditForeignKeys(ctx, p.sess, db, table)
	if err != nil {
		// Advisory only.
		p.log.Error(results.Appendf("Error checking foreign keys for `%s`: %v", table, err))
		return
	}
	if len(keys) > 0 {
		p.log.Info(results.Appendf("Foreign keys found for `%s`: %v", table, keys))
		return
	}
	p.log.Info(results.Appendf("No foreign keys found for `%s`.", table))
}

func (p *Processor) deleteRows(ctx context.Context, table config.TableSpec, results *ResultLog) {
	summary, err := p.engine.Delete(ctx, table.Name, table, results)
	switch {
	case errors.Is(err, ErrMissingCondition):
		p.log.Warn(results.Appendf(
			"No delete_condition provided for `%s` with condition strategy.", table.Name))
	case err != nil:
		p.log.Error(results.Appendf("Error deleting rows from `%s`: %v", table.Name, err))
	case summary.Truncated:
		p.log.Info(results.Appendf("Table `%s` truncated successfully.", table.Name))
	default:
		p.log.Info(results.Appendf("Deleted %d rows from `%s` in %d batch(es).",
			summary.RowsDeleted, table.Name, summary.Batches))
	}
}

func (p *Processor) optimize(ctx context.Context, table string, results *ResultLog) {
	stmt := "OPTIMIZE TABLE `" + table + "`;"
	rows, err := p.exec.Fetch(ctx, stmt)
	if err != nil {
		p.log.Error(results.Appendf("Error optimizing table `%s`: %v", table, err))
		return
	}
	p.log.Info(results.Appendf("Optimized `%s`: %v", table, rows))
}
