package livebackup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Options configures a Backup run. The zero value is not valid; use
// DefaultOptions as a starting point.
type Options struct {
	// PagesPerStep bounds how much of the source is copied per Step
	// call — the knob that trades backup throughput for source
	// responsiveness.
	PagesPerStep int

	// StepDelay is how long Backup sleeps between steps, giving the
	// source's other connections a window to run.
	StepDelay time.Duration

	// MaxBusyRetries bounds how many times a single step may be retried
	// after a transient SQLITE_BUSY/SQLITE_LOCKED, preventing livelock
	// against a source under sustained write pressure.
	MaxBusyRetries int
}

// DefaultOptions matches the figures named in spec.md §4.6 and §8
// scenario 7: small steps, a short pause between them, bounded retries.
func DefaultOptions() Options {
	return Options{
		PagesPerStep:   32,
		StepDelay:      5 * time.Millisecond,
		MaxBusyRetries: 100,
	}
}

// ErrSourceUnreadable wraps a failure opening or stepping the source
// database, distinct from a destination I/O failure.
var ErrSourceUnreadable = errors.New("livebackup: source database unreadable")

// Backup copies srcPath to dstPath using sqlite's online-backup API,
// emitting events on emit as it proceeds. Any pre-existing file at
// dstPath — including one left truncated or corrupt by a prior crash —
// is removed before starting, so Backup never has to reason about its
// contents.
func Backup(ctx context.Context, srcPath, dstPath string, emit EventFunc, opts Options) (err error) {
	if opts.PagesPerStep <= 0 {
		opts.PagesPerStep = DefaultOptions().PagesPerStep
	}

	if rmErr := os.Remove(dstPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("livebackup: clear stale destination %s: %w", dstPath, rmErr)
	}
	// Registered first so it runs after the connections below are closed:
	// a failed run leaves nothing at dstPath.
	defer func() {
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	srcDB, err := sql.Open("sqlite3", srcPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceUnreadable, srcPath, err)
	}
	defer srcDB.Close()

	dstDB, err := sql.Open("sqlite3", dstPath)
	if err != nil {
		return fmt.Errorf("livebackup: open destination %s: %w", dstPath, err)
	}
	defer dstDB.Close()

	srcConn, err := srcDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire source conn: %v", ErrSourceUnreadable, err)
	}
	defer srcConn.Close()

	dstConn, err := dstDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("livebackup: acquire destination conn: %w", err)
	}
	defer dstConn.Close()

	var backup *sqlite3.SQLiteBackup
	if rawErr := dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			srcRaw, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("livebackup: source driver is not *sqlite3.SQLiteConn")
			}
			dstRaw, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("livebackup: destination driver is not *sqlite3.SQLiteConn")
			}
			b, err := dstRaw.Backup("main", srcRaw, "main")
			if err != nil {
				return fmt.Errorf("livebackup: start backup: %w", err)
			}
			backup = b
			return nil
		})
	}); rawErr != nil {
		return rawErr
	}
	defer func() {
		if backup != nil {
			backup.Close()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("livebackup: %w", err)
		}

		emit.emit(PhaseBefore, "step")
		done, stepErr := stepWithBusyRetry(backup, opts)
		emit.emit(PhaseAfter, "step")

		if stepErr != nil {
			return fmt.Errorf("%w: step: %v", ErrSourceUnreadable, stepErr)
		}
		if done {
			break
		}
		time.Sleep(opts.StepDelay)
	}

	emit.emit(PhaseBefore, "finish")
	if err := backup.Finish(); err != nil {
		emit.emit(PhaseAfter, "finish")
		return fmt.Errorf("livebackup: finish: %w", err)
	}
	emit.emit(PhaseAfter, "finish")

	return nil
}

// stepWithBusyRetry calls backup.Step once, retrying transient
// busy/locked results up to opts.MaxBusyRetries times. sqlite's backup
// API already re-copies any page the source writes mid-backup; this loop
// only exists for the separate case where the step itself cannot acquire
// a lock at all.
func stepWithBusyRetry(backup *sqlite3.SQLiteBackup, opts Options) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxBusyRetries; attempt++ {
		done, err := backup.Step(opts.PagesPerStep)
		if err == nil {
			return done, nil
		}
		if !isBusyOrLocked(err) {
			return false, err
		}
		lastErr = err
		time.Sleep(opts.StepDelay)
	}
	return false, fmt.Errorf("exceeded %d busy retries: %w", opts.MaxBusyRetries, lastErr)
}

func isBusyOrLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
