// Package store provides SQLite-backed durable storage for rollbook.
//
// The store owns three tables:
//   - students: one row per student record, keyed by roll number
//   - users: login accounts (admin or student) with password hashes
//   - edit_requests: student-proposed field changes and their handling
//
// # Schema Evolution
//
// Databases written by older versions of the program lack some columns.
// Open checks PRAGMA table_info and adds each missing column with
// ALTER TABLE ... ADD COLUMN. Existing rows are never rewritten or dropped,
// and reopening a current database changes nothing.
//
// # Search
//
// Every connection registers a deterministic fold() SQL function backed by
// Unicode case folding. Search matches the folded query as a literal
// substring (instr, not LIKE), so '%' and '_' in a query are ordinary text.
//
// # Transactions
//
// Single statements run directly against the pool. Approving an edit
// request touches two tables and runs inside InTx; the status flip is
// conditional on status = 'OPEN' so the same request can never be handled
// twice.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - One open connection: SQLite has a single writer
package store
