// Package store provides the bbolt-backed environment and the transaction
// facade that every other layer reads and writes through.
//
// An Environment is one open store file. It holds up to MaxDatabases named
// databases (top-level buckets); the unnamed default database is stored
// under a reserved bucket and surfaced as DefaultDB.
//
// # Transaction Rules
//
// TR-1: Single Writer
//   - At most one WriteTx is live per environment
//   - A second BeginWrite fails immediately with WRITE_CONFLICT; it never queues
//   - Commit and Abort take the write token; a stale token is rejected
//
// TR-2: Snapshot Readers
//   - BeginRead never blocks on the writer
//   - A ReadTx sees the last state committed before it began, unchanged
//     until it is closed
//   - ReadTx.Close is idempotent and always releases the snapshot
//
// TR-3: Read Your Writes
//   - WriteTx.View exposes the uncommitted state through the Reader surface
//
// TR-4: Bounded Close
//   - Close refuses while a write is live (BUSY)
//   - Close waits at most CloseTimeout for in-flight readers
//
// # Engine Configuration
//
//   - InitialMmapSize: pre-sized map so commits rarely remap under readers
//   - Timeout: bounded wait for the file lock held by another process
//   - ReadOnly: shared file lock, no write transactions
//
// Values handed out by Reader implementations are copies; they stay valid
// after the transaction ends.
package store
