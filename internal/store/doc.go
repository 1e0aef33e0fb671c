// Package store provides SQLite-backed run history.
//
// Each run stores its header (start time, prompt, report digest, counts)
// and one row per (scenario, backend) result. Reports are never stored;
// they are rebuilt from the result rows, and the stored digest lets a
// reader confirm the rebuilt report matches what the run printed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Result IDs are content-addressed (see internal/ir) and are checked
// against the stored columns on read.
package store
