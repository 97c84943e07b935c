// Package store provides SQLite-backed durable storage for tally datasets.
//
// The store holds:
//   - Datasets: one row per named dataset, created on first write
//   - Records: content-addressed observations with JSON dimensions and measures
//   - API keys: digests of ingest credentials (plaintext is never stored)
//
// # Critical Patterns
//
// Idempotent ingest
//   - records.id is the record's content address (see record.RecordID)
//   - INSERT ... ON CONFLICT(id) DO NOTHING makes re-ingesting a batch a no-op
//
// Deterministic results
//   - Raw reads order by ts ASC, seq ASC, id COLLATE BINARY ASC
//   - Aggregates are compiled by querysql, which always emits ORDER BY
//
// Measures are stored as plain JSON numbers so json_extract returns REAL or
// INTEGER values SQLite can aggregate.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
