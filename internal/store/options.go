package store

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMapSize is the initial memory map size (64 MiB).
	DefaultMapSize = 64 << 20

	// DefaultMaxDatabases bounds the number of named databases.
	DefaultMaxDatabases = 128

	// DefaultOpenTimeout bounds the wait for another process's file lock.
	DefaultOpenTimeout = 2 * time.Second

	// DefaultCloseTimeout bounds the wait for in-flight readers on close.
	DefaultCloseTimeout = 5 * time.Second
)

// OpenMode selects how an environment is opened.
type OpenMode int

const (
	// ModeReadOnly opens an existing store without write access.
	ModeReadOnly OpenMode = iota
	// ModeReadWrite opens an existing store for writing.
	ModeReadWrite
	// ModeCreate opens for writing, creating the file if missing.
	ModeCreate
)

// String returns a human-readable name for the mode.
func (m OpenMode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Writable reports whether the mode permits write transactions.
func (m OpenMode) Writable() bool {
	return m != ModeReadOnly
}

// TokenGenerator produces write-transaction tokens.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 token.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CommitHook runs inside Commit before the commit point. A non-nil error
// aborts the write and is returned from Commit.
type CommitHook func(token string) error

// Options configures environments opened by a Manager.
type Options struct {
	MapSize      int
	MaxDatabases int
	PageSize     int
	OpenTimeout  time.Duration
	CloseTimeout time.Duration
	NoSync       bool
	Tokens       TokenGenerator
	CommitHook   CommitHook
	Logger       *slog.Logger
}

// Option configures Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MapSize:      DefaultMapSize,
		MaxDatabases: DefaultMaxDatabases,
		OpenTimeout:  DefaultOpenTimeout,
		CloseTimeout: DefaultCloseTimeout,
		Tokens:       UUIDv7Generator{},
		Logger:       slog.Default(),
	}
}

// WithMapSize sets the initial memory map size in bytes. Existing files are
// opened with at least twice their size.
//
// A commit that outgrows the map has to remap it, and bbolt blocks that
// remap until every open read transaction ends. Size the map above the
// expected data size when long scans run alongside writes.
func WithMapSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MapSize = n
		}
	}
}

// WithMaxDatabases bounds the number of named databases.
func WithMaxDatabases(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxDatabases = n
		}
	}
}

// WithPageSize sets the page size used when creating a new store.
func WithPageSize(n int) Option {
	return func(o *Options) { o.PageSize = n }
}

// WithOpenTimeout bounds the wait for the file lock.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *Options) { o.OpenTimeout = d }
}

// WithCloseTimeout bounds the wait for in-flight readers on close.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *Options) { o.CloseTimeout = d }
}

// WithNoSync disables fsync on commit. Only for tests.
func WithNoSync() Option {
	return func(o *Options) { o.NoSync = true }
}

// WithTokenGenerator overrides write-token generation.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *Options) { o.Tokens = g }
}

// WithCommitHook installs a hook that runs before each commit point.
func WithCommitHook(h CommitHook) Option {
	return func(o *Options) { o.CommitHook = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
