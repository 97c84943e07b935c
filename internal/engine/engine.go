package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tally/internal/querysql"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// DefaultMaxBatch is the default maximum number of records per batch.
const DefaultMaxBatch = 10000

// subscriberBuffer is the per-subscriber notification backlog. A subscriber
// that falls further behind misses notifications.
const subscriberBuffer = 16

// Batch is a set of records submitted together.
type Batch struct {
	// Dataset every record is written to. Records with an empty Dataset
	// inherit it; records naming another dataset are rejected.
	Dataset string
	Records []record.Record
	// Source describes where the batch came from (e.g. "http", "csv:file.csv").
	Source string
}

// BatchResult reports the outcome of a committed batch.
type BatchResult struct {
	ID         string `json:"id"`
	Dataset    string `json:"dataset"`
	Received   int    `json:"received"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	FirstSeq   int64  `json:"first_seq"`
	LastSeq    int64  `json:"last_seq"`
}

// Notification is sent to subscribers after each committed batch.
type Notification struct {
	BatchID  string    `json:"batch_id"`
	Dataset  string    `json:"dataset"`
	Inserted int       `json:"inserted"`
	LastSeq  int64     `json:"last_seq"`
	At       time.Time `json:"at"`
}

// Engine is the single-writer ingest loop plus the panel evaluator.
//
// CRITICAL: All store writes happen in the Run loop goroutine.
// External callers use Submit() to hand batches to it.
type Engine struct {
	store    *store.Store
	clock    *Clock
	queue    *jobQueue
	ids      IDGenerator
	compiler *querysql.Compiler
	logger   *slog.Logger
	now      func() time.Time
	maxBatch int

	subMu   sync.Mutex
	subs    map[int]chan Notification
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIDGenerator sets the batch ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the logical clock. Default: resumed from the store's MaxSeq.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNow sets the wall clock used for notifications and relative ranges.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxBatch sets the maximum records per batch.
//
// Default: 10000 records (DefaultMaxBatch)
func WithMaxBatch(n int) Option {
	return func(e *Engine) {
		e.maxBatch = n
	}
}

// New creates an Engine over s. Unless WithClock is given, the logical clock
// resumes after the highest seq already stored.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    s,
		queue:    newJobQueue(),
		ids:      UUIDv7Generator{},
		compiler: querysql.NewCompiler(),
		logger:   slog.Default(),
		now:      time.Now,
		maxBatch: DefaultMaxBatch,
		subs:     make(map[int]chan Notification),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		seq, err := s.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		e.clock = NewClockAt(seq)
	}

	return e, nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Submit validates a batch, queues it for the writer and waits for the
// commit. Thread-safe: may be called from any goroutine.
//
// Records are stamped (UTC time, content ID) before queueing; the writer
// assigns Seq. Re-submitting records that are already stored is not an
// error - they are counted as duplicates.
func (e *Engine) Submit(ctx context.Context, b Batch) (BatchResult, error) {
	if e.maxBatch > 0 && len(b.Records) > e.maxBatch {
		return BatchResult{}, &RuntimeError{
			Code:    ErrCodeBatchTooLarge,
			Message: fmt.Sprintf("batch has %d records, limit is %d", len(b.Records), e.maxBatch),
			Dataset: b.Dataset,
		}
	}

	stamped := make([]record.Record, len(b.Records))
	for i, r := range b.Records {
		if r.Dataset == "" {
			r.Dataset = b.Dataset
		}
		if r.Dataset != b.Dataset {
			return BatchResult{}, &RuntimeError{
				Code:    ErrCodeInvalidRecord,
				Message: fmt.Sprintf("record %d: dataset %q does not match batch dataset %q", i, r.Dataset, b.Dataset),
				Dataset: b.Dataset,
				Index:   i,
			}
		}
		s, err := record.Stamp(r)
		if err != nil {
			return BatchResult{}, &RuntimeError{
				Code:    ErrCodeInvalidRecord,
				Message: fmt.Sprintf("record %d: %v", i, err),
				Dataset: b.Dataset,
				Index:   i,
				Err:     err,
			}
		}
		stamped[i] = s
	}
	b.Records = stamped

	j := &job{batch: b, reply: make(chan jobResult, 1)}
	if !e.queue.Enqueue(j) {
		return BatchResult{}, queueClosedError(b.Dataset)
	}

	select {
	case <-ctx.Done():
		// The writer may still commit the batch; ingest is idempotent so a
		// retry is safe.
		return BatchResult{}, ctx.Err()
	case res := <-j.reply:
		return res.result, res.err
	}
}

// Run starts the single-writer loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// On Stop, jobs already queued are committed before Run returns.
// On cancellation, queued jobs are failed with QUEUE_CLOSED.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("ingest writer starting", "seq", e.clock.Current())

	for {
		select {
		case <-ctx.Done():
			return e.cancelled(ctx)
		default:
		}

		if j, ok := e.queue.TryDequeue(); ok {
			j.reply <- e.process(ctx, j.batch)
			continue
		}

		select {
		case <-ctx.Done():
			return e.cancelled(ctx)

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this case
			// fires immediately once stopped.
			if e.queue.Len() == 0 && e.isClosed() {
				e.logger.Info("ingest writer stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains what is queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) isClosed() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

func (e *Engine) cancelled(ctx context.Context) error {
	e.logger.Info("ingest writer stopping: context cancelled", "pending", e.queue.Len())
	e.queue.Close()
	e.failPending()
	return ctx.Err()
}

func (e *Engine) failPending() {
	for {
		j, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		j.reply <- jobResult{err: queueClosedError(j.batch.Dataset)}
	}
}

// process commits one batch.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, b Batch) jobResult {
	id := e.ids.Generate()
	res := BatchResult{ID: id, Dataset: b.Dataset, Received: len(b.Records)}

	for i := range b.Records {
		b.Records[i].Seq = e.clock.Next()
	}
	if len(b.Records) > 0 {
		res.FirstSeq = b.Records[0].Seq
		res.LastSeq = b.Records[len(b.Records)-1].Seq
	}

	inserted, err := e.store.WriteRecords(ctx, b.Records)
	if err != nil {
		e.logger.Error("batch write failed",
			"batch", id,
			"dataset", b.Dataset,
			"records", len(b.Records),
			"source", b.Source,
			"error", err,
		)
		return jobResult{err: fmt.Errorf("batch %s: %w", id, err)}
	}
	res.Inserted = inserted
	res.Duplicates = res.Received - inserted

	e.logger.Info("batch committed",
		"batch", id,
		"dataset", b.Dataset,
		"received", res.Received,
		"inserted", res.Inserted,
		"source", b.Source,
	)

	if inserted > 0 {
		e.publish(Notification{
			BatchID:  id,
			Dataset:  b.Dataset,
			Inserted: inserted,
			LastSeq:  res.LastSeq,
			At:       e.now().UTC(),
		})
	}
	return jobResult{result: res}
}

// Subscribe registers for commit notifications. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (e *Engine) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (e *Engine) publish(n Notification) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- n:
		default:
			e.logger.Warn("subscriber lagging, notification dropped", "subscriber", id, "batch", n.BatchID)
		}
	}
}

func queueClosedError(dataset string) error {
	return &RuntimeError{
		Code:    ErrCodeQueueClosed,
		Message: "ingest writer is not running",
		Dataset: dataset,
	}
}
