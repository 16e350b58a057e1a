package maintenance

import (
	"context"
	"fmt"

	"github.com/kebairia/dbmaint/internal/database"
)

// ForeignKey describes one referencing column of a table.
type ForeignKey struct {
	ConstraintName   string
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s: %s.%s -> %s.%s",
		fk.ConstraintName, fk.Table, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
}

// auditForeignKeys reports which columns of db.table reference other
// tables. It is a read-only catalog lookup and runs for real even in
// dry-run mode; its outcome never blocks deletion.
func auditForeignKeys(ctx context.Context, sess database.Session, db, table string) ([]ForeignKey, error) {
	query := fmt.Sprintf(`SELECT CONSTRAINT_NAME, TABLE_NAME, COLUMN_NAME,
       REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = '%s'
  AND TABLE_NAME = '%s'
  AND REFERENCED_TABLE_NAME IS NOT NULL;`, db, table)

	rows, err := sess.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	keys := make([]ForeignKey, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		keys = append(keys, ForeignKey{
			ConstraintName:   row[0],
			Table:            row[1],
			Column:           row[2],
			ReferencedTable:  row[3],
			ReferencedColumn: row[4],
		})
	}
	return keys, nil
}
