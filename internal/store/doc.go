// Package store provides SQLite-backed durable storage for the workday
// simulator.
//
// Four tables are managed here:
//   - events: append-only log of generated and injected events
//   - inbox_messages: undelivered inbound messages, one owner each
//   - participation_stats: per-person, per-day message counters
//   - tick_log: one row per unit advance of the clock
//
// Inbox messages follow at-least-once delivery: the runtime manager
// drains a recipient's rows, planning acts on them, and only then are the
// rows deleted. A crash between drain and delete re-delivers.
//
// Database configuration mirrors the rest of the system's determinism
// goals: WAL mode for concurrent reads, a single writer connection, and
// ordering by (tick, rowid) rather than wall time.
package store
