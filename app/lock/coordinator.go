package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// advisoryLockKey is the fixed 64-bit key, constant per application, so every
// instance contends for the same session-scoped lock.
const advisoryLockKey int64 = 210987654321

// DefaultLockPath is the fallback file lock location.
var DefaultLockPath = filepath.Join(os.TempDir(), "bezshuma.singleton.lock")

// Coordinator guarantees a single pipeline instance per store. The preferred
// mechanism is a Postgres session advisory lock held on a dedicated
// connection for the process lifetime; the fallback is a non-blocking
// exclusive flock on a well-known file. Both release automatically if the
// holder dies.
type Coordinator struct {
	db       *sql.DB
	lockPath string

	conn     *sql.Conn
	lockFile *os.File
}

func NewCoordinator(db *sql.DB) *Coordinator {
	return &Coordinator{db: db, lockPath: DefaultLockPath}
}

// Acquire tries once and reports whether this instance holds the singleton
// lock. A false result means another instance is live and this process must
// not start the pipeline.
func (c *Coordinator) Acquire(ctx context.Context) (bool, error) {
	held, err := c.acquireAdvisory(ctx)
	if err == nil {
		return held, nil
	}
	slog.Warn("Advisory lock unavailable, trying file lock", "error", err)

	held, err = c.acquireFile()
	if err == nil {
		return held, nil
	}
	slog.Warn("No locking mechanism available, proceeding unguarded", "error", err)

	// Degraded best-effort mode: nothing prevents a concurrent instance.
	return true, nil
}

func (c *Coordinator) acquireAdvisory(ctx context.Context) (bool, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open lock connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1)`, advisoryLockKey).Scan(&acquired)
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to take advisory lock: %w", err)
	}

	if !acquired {
		conn.Close()
		return false, nil
	}

	// The session lock lives exactly as long as this connection.
	c.conn = conn
	slog.Info("Acquired advisory lock", "key", advisoryLockKey)
	return true, nil
}

func (c *Coordinator) acquireFile() (bool, error) {
	f, err := os.OpenFile(c.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("failed to flock: %w", err)
	}

	f.Truncate(0)
	f.WriteString(strconv.Itoa(os.Getpid()))
	f.Sync()

	c.lockFile = f
	slog.Info("Acquired file lock", "path", c.lockPath)
	return true, nil
}

// Release frees whichever lock is held. Safe to call when nothing was
// acquired; must run on every shutdown path.
func (c *Coordinator) Release() {
	if c.conn != nil {
		if _, err := c.conn.ExecContext(context.Background(),
			`SELECT pg_advisory_unlock($1)`, advisoryLockKey); err != nil {
			slog.Warn("Failed to release advisory lock", "error", err)
		}
		c.conn.Close()
		c.conn = nil
	}

	if c.lockFile != nil {
		syscall.Flock(int(c.lockFile.Fd()), syscall.LOCK_UN)
		c.lockFile.Close()
		c.lockFile = nil
	}
}
