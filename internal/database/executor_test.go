package database

import (
	"context"
	"testing"

	"github.com/kebairia/dbmaint/internal/logger"
)

// recordSession counts everything that reaches the server side.
type recordSession struct {
	execCalls  int
	queryCalls int
	useCalls   int

	affected int64
	rows     []Row
}

func (s *recordSession) Use(_ context.Context, name string) error {
	s.useCalls++
	return nil
}

func (s *recordSession) Exec(_ context.Context, stmt string) (int64, error) {
	s.execCalls++
	return s.affected, nil
}

func (s *recordSession) Query(_ context.Context, stmt string) ([]Row, error) {
	s.queryCalls++
	return s.rows, nil
}

func (s *recordSession) Close() error { return nil }

func TestExecutor_DryRunSendsNothing(t *testing.T) {
	sess := &recordSession{affected: 42, rows: []Row{{"should", "never", "surface"}}}
	exec := NewExecutor(sess, logger.Nop(), true)

	affected, err := exec.Exec(context.Background(), "DELETE FROM `events` WHERE 1=1;")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if affected != 0 {
		t.Errorf("dry run affected = %d, want 0", affected)
	}

	rows, err := exec.Fetch(context.Background(), "OPTIMIZE TABLE `events`;")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if rows != nil {
		t.Errorf("dry run rows = %v, want none", rows)
	}

	if sess.execCalls != 0 || sess.queryCalls != 0 {
		t.Errorf("dry run reached the session: %d exec, %d query calls, want 0 and 0",
			sess.execCalls, sess.queryCalls)
	}
	if !exec.DryRun() {
		t.Error("DryRun() = false, want true")
	}
}

func TestExecutor_RealModeDelegates(t *testing.T) {
	sess := &recordSession{affected: 7, rows: []Row{{"events", "optimize", "status", "OK"}}}
	exec := NewExecutor(sess, logger.Nop(), false)

	affected, err := exec.Exec(context.Background(), "DELETE FROM `events` WHERE 1=1 LIMIT 10;")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if affected != 7 {
		t.Errorf("affected = %d, want 7", affected)
	}

	rows, err := exec.Fetch(context.Background(), "OPTIMIZE TABLE `events`;")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(rows) != 1 || rows[0][3] != "OK" {
		t.Errorf("rows = %v, want the session's result set", rows)
	}

	if sess.execCalls != 1 || sess.queryCalls != 1 {
		t.Errorf("session calls = %d exec, %d query, want 1 and 1",
			sess.execCalls, sess.queryCalls)
	}
}
