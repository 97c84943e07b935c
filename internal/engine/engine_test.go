package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/testutil"
)

func TestSubmit_CommitsAndStampsSeq(t *testing.T) {
	e, s := startEngine(t)
	ctx := context.Background()

	res, err := e.Submit(ctx, Batch{
		Dataset: "sales",
		Records: testutil.Daily("", testutil.Epoch, "amount", 1, 2, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{
		ID: "batch-0001", Dataset: "sales",
		Received: 3, Inserted: 3, Duplicates: 0,
		FirstSeq: 1, LastSeq: 3,
	}, res)

	got, err := s.ReadRecords(ctx, "sales", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, int64(i+1), r.Seq)
		assert.NotEmpty(t, r.ID)
	}
}

func TestSubmit_Idempotent(t *testing.T) {
	e, _ := startEngine(t)
	ctx := context.Background()
	b := Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1, 2)}

	_, err := e.Submit(ctx, b)
	require.NoError(t, err)

	res, err := e.Submit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, "batch-0002", res.ID)
}

func TestSubmit_RejectsInvalidRecord(t *testing.T) {
	e, _ := startEngine(t)

	recs := testutil.Daily("sales", testutil.Epoch, "amount", 1, 2)
	recs[1].Measures = map[string]float64{}

	_, err := e.Submit(context.Background(), Batch{Dataset: "sales", Records: recs})
	require.Error(t, err)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidRecord, re.Code)
	assert.Equal(t, 1, re.Index)
	assert.ErrorIs(t, err, record.ErrInvalid)
}

func TestSubmit_RejectsForeignDataset(t *testing.T) {
	e, _ := startEngine(t)
	_, err := e.Submit(context.Background(), Batch{
		Dataset: "sales",
		Records: []record.Record{testutil.Rec("visits", testutil.Epoch, "n", 1)},
	})
	assert.Equal(t, ErrCodeInvalidRecord, CodeOf(err))
}

func TestSubmit_BatchTooLarge(t *testing.T) {
	e, _ := startEngine(t, WithMaxBatch(2))
	_, err := e.Submit(context.Background(), Batch{
		Dataset: "sales",
		Records: testutil.Daily("sales", testutil.Epoch, "amount", 1, 2, 3),
	})
	assert.Equal(t, ErrCodeBatchTooLarge, CodeOf(err))
}

func TestSubmit_AfterStop(t *testing.T) {
	e, _ := startEngine(t)
	e.Stop()

	_, err := e.Submit(context.Background(), Batch{
		Dataset: "sales",
		Records: testutil.Daily("sales", testutil.Epoch, "amount", 1),
	})
	assert.Equal(t, ErrCodeQueueClosed, CodeOf(err))
}

func TestSubmit_ContextCancelledWhileWaiting(t *testing.T) {
	// No Run loop: the job is queued but never processed.
	s := testutil.OpenStore(t)
	e, err := New(context.Background(), s, WithLogger(discardLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Submit(ctx, Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_CancelFailsPending(t *testing.T) {
	s := testutil.OpenStore(t)
	e, err := New(context.Background(), s, WithLogger(discardLogger))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1)})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return e.queue.Len() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)

	select {
	case err := <-errCh:
		assert.Equal(t, ErrCodeQueueClosed, CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("pending submit was not failed")
	}
}

func TestRun_StopDrainsQueue(t *testing.T) {
	s := testutil.OpenStore(t)
	e, err := New(context.Background(), s, WithLogger(discardLogger))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1)})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return e.queue.Len() == 1 }, time.Second, time.Millisecond)

	e.Stop()
	require.NoError(t, e.Run(context.Background()))
	require.NoError(t, <-errCh)

	got, err := s.ReadRecords(context.Background(), "sales", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNew_ResumesClock(t *testing.T) {
	s := testutil.OpenStore(t)
	recs := testutil.Daily("sales", testutil.Epoch, "amount", 1, 2)
	for i := range recs {
		r, err := record.Stamp(recs[i])
		require.NoError(t, err)
		r.Seq = int64(40 + i)
		recs[i] = r
	}
	_, err := s.WriteRecords(context.Background(), recs)
	require.NoError(t, err)

	e, err := New(context.Background(), s, WithLogger(discardLogger))
	require.NoError(t, err)
	assert.Equal(t, int64(41), e.Clock().Current())
}

func TestSubscribe_ReceivesNotifications(t *testing.T) {
	e, _ := startEngine(t)
	ch, cancel := e.Subscribe()
	defer cancel()

	_, err := e.Submit(context.Background(), Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1, 2)})
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, Notification{BatchID: "batch-0001", Dataset: "sales", Inserted: 2, LastSeq: 2, At: testutil.Epoch}, n)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	// A batch of duplicates commits nothing and notifies nobody.
	_, err = e.Submit(context.Background(), Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1, 2)})
	require.NoError(t, err)
	select {
	case n := <-ch:
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	e, _ := startEngine(t)
	ch, cancel := e.Subscribe()
	cancel()
	cancel() // safe twice

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	_, err := e.Submit(context.Background(), Batch{Dataset: "sales", Records: testutil.Daily("sales", testutil.Epoch, "amount", 1)})
	assert.NoError(t, err)
}
