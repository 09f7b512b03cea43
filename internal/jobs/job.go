// Package jobs runs long read-only work (scans, counts, statistics, exports)
// off the caller's goroutine and reports progress over a channel.
//
// Each job opens its own read transaction, so it sees one consistent
// snapshot and never contends with the writer. Concurrency is bounded by a
// semaphore; jobs beyond the bound wait for a slot.
//
// # Update Stream
//
//   - Updates for one job arrive in order; the last one has Final set
//   - Progress updates are dropped when the consumer falls behind; the
//     final update always fits
//   - The stream is closed after the final update
//
// # Cancellation
//
// Cancel is cooperative. A running job checks its token between scan units
// (PageSize entries) and stops within one unit, reporting StatusCancelled.
package jobs

import (
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/store"
)

// Kind identifies the work a job performs.
type Kind int

const (
	// KindScan collects the records matching a query.
	KindScan Kind = iota + 1
	// KindCount counts the entries of a database.
	KindCount
	// KindDBStats computes statistics for one database.
	KindDBStats
	// KindEnvStats computes environment statistics.
	KindEnvStats
	// KindExport writes a database to a file.
	KindExport
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindCount:
		return "count"
	case KindDBStats:
		return "db-stats"
	case KindEnvStats:
		return "env-stats"
	case KindExport:
		return "export"
	default:
		return "unknown"
	}
}

// Request describes a job.
type Request struct {
	Kind Kind

	// DB is the target database (all kinds except KindEnvStats).
	DB string

	// Query selects records for KindScan and KindExport. The zero Query
	// scans everything.
	Query query.Query

	// Limit caps the records a scan collects. 0 means no cap.
	Limit int

	// Format and Path are the KindExport destination.
	Format export.Format
	Path   string
}

// Status is the state of a job.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further updates follow.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Result is the payload of a successful job.
type Result struct {
	Records  []store.Record
	Count    int
	DBStats  *store.DBStats
	EnvStats *store.EnvStats
	Exported int
	// Skipped counts values a JSONPath decoder rejected.
	Skipped int
}

// Update is one message on a job's stream.
type Update struct {
	JobID  string
	Kind   Kind
	Seq    int
	Status Status
	Final  bool

	// Scanned is the number of entries read so far.
	Scanned int

	// Result is set on the final update of a successful job.
	Result *Result

	// Err is set on the final update of a failed job (JOB_FAILED).
	Err error
}
