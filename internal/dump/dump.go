package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/dbmaint/internal/config"
	"github.com/kebairia/dbmaint/internal/logger"
)

const (
	// RemoteKeyPrefix is prepended to every object key for remote storage.
	RemoteKeyPrefix = "db_dumps/"

	// passwordMask replaces the credential in every logged command line.
	passwordMask = "********"

	timestampLayout = "20060102_150405"
)

// ErrDumpFailed means no durable backup exists for the table; the caller
// must not run any destructive step against it.
var ErrDumpFailed = errors.New("dump failed")

// Uploader pushes a local dump file to remote object storage.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Dumper produces compressed per-table dumps via mysqldump.
type Dumper struct {
	conn     config.Connection
	uploader Uploader
	log      logger.Logger
	dryRun   bool

	now func() time.Time
}

func New(conn config.Connection, uploader Uploader, log logger.Logger, dryRun bool) *Dumper {
	return &Dumper{
		conn:     conn,
		uploader: uploader,
		log:      log,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// DumpTable writes a gzip-compressed dump of db.table and returns the
// local path it was written to (or would be written to, in dry-run mode).
// A non-nil error means the table has no durable backup.
func (d *Dumper) DumpTable(ctx context.Context, db, table string, spec config.TableSpec) (string, error) {
	fileName := fmt.Sprintf("%s_%s_%s.sql.gz", db, table, d.now().Format(timestampLayout))

	dumpFile := fileName
	if spec.DumpStorage == config.StorageLocal {
		dumpFile = filepath.Join(spec.DumpPath, fileName)
	}

	args := d.dumpArgs(db, table)

	if d.dryRun {
		d.log.Info("dry run, dump command not executed",
			"command", maskedCommand(d.conn.MysqldumpPath, args),
			"file", dumpFile,
		)
		if spec.DumpStorage == config.StorageS3 {
			d.log.Info("dry run, s3 upload skipped", "key", RemoteKeyPrefix+fileName)
		}
		return dumpFile, nil
	}

	if spec.DumpStorage == config.StorageLocal {
		if err := os.MkdirAll(spec.DumpPath, 0o755); err != nil {
			return "", fmt.Errorf("%w: create dump directory %q: %v", ErrDumpFailed, spec.DumpPath, err)
		}
	}

	d.log.Info("dumping table",
		"database", db,
		"table", table,
		"file", dumpFile,
		"command", maskedCommand(d.conn.MysqldumpPath, args),
	)
	if err := d.runDump(ctx, args, dumpFile); err != nil {
		d.log.Error("dump failed",
			"database", db,
			"table", table,
			"error", err.Error(),
		)
		return "", err
	}
	d.log.Info("dump successful", "file", dumpFile)

	if spec.DumpStorage == config.StorageS3 {
		key := RemoteKeyPrefix + fileName
		if d.uploader == nil {
			// Same contract as a failed upload: the local dump stands.
			d.log.Error("no s3 uploader available, dump kept local", "file", dumpFile, "key", key)
			return dumpFile, nil
		}
		if err := d.uploader.Upload(ctx, dumpFile, key); err != nil {
			// The local dump already succeeded; the upload miss is
			// reported but does not abort the table.
			d.log.Error("s3 upload failed",
				"file", dumpFile,
				"key", key,
				"error", err.Error(),
			)
			return dumpFile, nil
		}
		d.log.Info("uploaded dump", "file", dumpFile, "key", key)
		if err := os.Remove(dumpFile); err != nil {
			d.log.Warn("could not remove local dump after upload", "file", dumpFile, "error", err.Error())
		}
	}

	return dumpFile, nil
}

// runDump streams mysqldump's stdout through a gzip writer straight into
// dumpFile. Any failure removes the partial file.
func (d *Dumper) runDump(ctx context.Context, args []string, dumpFile string) (err error) {
	outFile, err := os.Create(dumpFile)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", ErrDumpFailed, dumpFile, err)
	}
	defer func() {
		outFile.Close()
		if err != nil {
			os.Remove(dumpFile)
		}
	}()

	cmd := exec.CommandContext(ctx, d.conn.MysqldumpPath, args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrDumpFailed, err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("%w: start mysqldump: %v", ErrDumpFailed, err)
	}

	gz := gzip.NewWriter(outFile)
	if _, err = io.Copy(gz, stdout); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("%w: stream dump output: %v", ErrDumpFailed, err)
	}
	if err = gz.Close(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("%w: flush gzip stream: %v", ErrDumpFailed, err)
	}

	if err = cmd.Wait(); err != nil {
		return fmt.Errorf("%w: mysqldump: %v", ErrDumpFailed, err)
	}
	return nil
}

func (d *Dumper) dumpArgs(db, table string) []string {
	return []string{
		"-h", d.conn.Host,
		"-u", d.conn.User,
		"-p" + d.conn.Password,
		db,
		table,
	}
}

// maskedCommand renders the command line with the password replaced by a
// fixed placeholder. Every logged representation of the dump command must
// go through here.
func maskedCommand(path string, args []string) string {
	masked := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "-p") && len(arg) > 2 {
			arg = "-p" + passwordMask
		}
		masked[i] = arg
	}
	return path + " " + strings.Join(masked, " ")
}
