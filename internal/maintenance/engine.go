package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/dbmaint/internal/config"
	"github.com/kebairia/dbmaint/internal/database"
	"github.com/kebairia/dbmaint/internal/logger"
)

// ErrMissingCondition marks a condition strategy configured without a
// predicate. The table is skipped, but the defect must surface in the
// result log rather than pass as success.
var ErrMissingCondition = errors.New("no delete_condition provided for condition strategy")

// ErrNoStrategy is returned when a table has no delete strategy configured.
var ErrNoStrategy = errors.New("no delete strategy configured")

// sqlRunner is the slice of database.Executor the engine needs.
type sqlRunner interface {
	Exec(ctx context.Context, stmt string) (int64, error)
	Fetch(ctx context.Context, stmt string) ([]database.Row, error)
	DryRun() bool
}

// DeleteSummary reports what a delete strategy did to one table.
type DeleteSummary struct {
	Truncated   bool
	Batches     int
	RowsDeleted int64
}

// Engine removes rows from live tables in bounded, individually committed
// batches, pacing itself between batches so a large removal never holds
// locks for long. Each batch commit is a checkpoint: a run killed
// mid-operation leaves the table valid, just partially cleaned.
type Engine struct {
	exec sqlRunner
	log  logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

func NewEngine(exec sqlRunner, log logger.Logger) *Engine {
	return &Engine{
		exec:  exec,
		log:   log,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Delete applies the table's configured delete strategy. Batch progress
// lines are appended to results; the caller appends the overall outcome.
func (e *Engine) Delete(ctx context.Context, table string, spec config.TableSpec, results *ResultLog) (*DeleteSummary, error) {
	switch spec.DeleteStrategy {
	case config.StrategyTruncate:
		return e.truncate(ctx, table)
	case config.StrategyCondition:
		if spec.DeleteCondition == "" {
			return nil, ErrMissingCondition
		}
		return e.deleteWhere(ctx, table, spec.DeleteCondition, spec, results)
	case config.StrategyOlderThan:
		predicate := e.agePredicate(spec.DateColumn, spec.DeleteOlderThanDays)
		return e.deleteWhere(ctx, table, predicate, spec, results)
	default:
		return nil, ErrNoStrategy
	}
}

func (e *Engine) truncate(ctx context.Context, table string) (*DeleteSummary, error) {
	stmt := fmt.Sprintf("TRUNCATE TABLE `%s`;", table)
	if _, err := e.exec.Exec(ctx, stmt); err != nil {
		return nil, err
	}
	return &DeleteSummary{Truncated: true}, nil
}

// deleteWhere removes all rows matching predicate. With a batch size
// configured the deletion proceeds in LIMIT-bounded statements until a
// batch deletes fewer rows than requested; without one, a single
// unbounded delete runs.
func (e *Engine) deleteWhere(ctx context.Context, table, predicate string, spec config.TableSpec, results *ResultLog) (*DeleteSummary, error) {
	batchSize := spec.DeleteBatchSize
	if batchSize <= 0 {
		affected, err := e.exec.Exec(ctx, deleteStatement(table, predicate, 0))
		if err != nil {
			return nil, err
		}
		return &DeleteSummary{Batches: 1, RowsDeleted: affected}, nil
	}

	delay := time.Duration(spec.DeleteBatchDelay) * time.Second
	stmt := deleteStatement(table, predicate, batchSize)
	summary := &DeleteSummary{}

	for {
		affected, err := e.exec.Exec(ctx, stmt)
		if err != nil {
			return nil, err
		}
		summary.Batches++
		summary.RowsDeleted += affected

		msg := results.Appendf("Batch deleted from `%s` (%d rows, %d total)",
			table, affected, summary.RowsDeleted)
		e.log.Info(msg)

		// A partial batch means the predicate is exhausted. In dry-run
		// mode affected is always zero, so exactly one simulated batch
		// runs. An exactly-full final batch costs one extra zero-row
		// round trip.
		if affected < int64(batchSize) {
			break
		}

		if delay > 0 && !e.exec.DryRun() {
			e.sleep(delay)
		}
	}

	return summary, nil
}

// agePredicate builds the cutoff comparison for the older_than_days
// strategy. The comparison is strictly less-than: rows dated exactly at
// the threshold survive.
func (e *Engine) agePredicate(dateColumn string, days int) string {
	cutoff := e.now().AddDate(0, 0, -days)
	return fmt.Sprintf("`%s` < '%s'", dateColumn, cutoff.Format("2006-01-02"))
}

// deleteStatement is the single place where operator-authored predicate
// text is spliced into SQL. The predicate comes from the maintenance
// config, a trusted operator input, not from end users.
func deleteStatement(table, predicate string, limit int) string {
	if limit > 0 {
		return fmt.Sprintf("DELETE FROM `%s` WHERE %s LIMIT %d;", table, predicate, limit)
	}
	return fmt.Sprintf("DELETE FROM `%s` WHERE %s;", table, predicate)
}
