package database

import (
	"context"

	"github.com/kebairia/dbmaint/internal/logger"
)

// Executor fronts a Session with dry-run semantics: every statement is
// logged the same way in both modes, but in dry-run mode nothing reaches
// the server and affected counts are reported as zero.
type Executor struct {
	session Session
	log     logger.Logger
	dryRun  bool
}

func NewExecutor(session Session, log logger.Logger, dryRun bool) *Executor {
	return &Executor{
		session: session,
		log:     log,
		dryRun:  dryRun,
	}
}

func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Exec runs a mutating statement and returns its affected row count.
func (e *Executor) Exec(ctx context.Context, stmt string) (int64, error) {
	e.log.Info("executing sql", "statement", stmt)
	if e.dryRun {
		e.log.Info("dry run, statement not sent", "statement", stmt)
		return 0, nil
	}
	return e.session.Exec(ctx, stmt)
}

// Fetch runs a statement for its result rows (e.g. OPTIMIZE TABLE).
func (e *Executor) Fetch(ctx context.Context, stmt string) ([]Row, error) {
	e.log.Info("executing sql", "statement", stmt)
	if e.dryRun {
		e.log.Info("dry run, statement not sent", "statement", stmt)
		return nil, nil
	}
	return e.session.Query(ctx, stmt)
}
