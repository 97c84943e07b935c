// Package engine runs tally's ingest writer and evaluates dashboard panels.
//
// Ingest is single-writer: HTTP handlers and CLI commands call Submit from
// any goroutine, batches are queued FIFO, and one Run goroutine stamps each
// record with a logical sequence number and commits the batch. Subscribers
// are told about every committed batch.
//
// Evaluation is read-only and may run on any goroutine: a panel is compiled
// to SQL, aggregated by SQLite, gap-filled per bucket, split into one series
// per group and, when asked, fitted with a least-squares trend.
//
// Thread-safety model:
//   - Submit(), Subscribe(), Evaluate(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
package engine
