package receiptparser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
)

type fakeParser struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  map[uuid.UUID]bool
	block chan struct{}
}

func (f *fakeParser) Parse(_ context.Context, id uuid.UUID, _ string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return errors.New("extraction failed")
	}
	return nil
}

func waitForState(t *testing.T, q *receiptparser.Queue, taskID string, want receiptparser.TaskState) receiptparser.TaskStatus {
	t.Helper()
	var st receiptparser.TaskStatus
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = q.Status(taskID)
		return ok && st.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestQueue_TracksOutcomeByID(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	parser := &fakeParser{fail: map[uuid.UUID]bool{bad: true}}
	q := receiptparser.NewQueue(parser, zerolog.Nop(), receiptparser.WithWorkers(2))

	okID, err := q.Submit(receiptparser.Job{ReceiptID: good, FilePath: "a"})
	require.NoError(t, err)
	badID, err := q.Submit(receiptparser.Job{ReceiptID: bad, FilePath: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, okID, badID)

	st := waitForState(t, q, okID, receiptparser.TaskSucceeded)
	assert.Equal(t, good, st.ReceiptID)
	assert.NotNil(t, st.FinishedAt)

	st = waitForState(t, q, badID, receiptparser.TaskFailed)
	assert.Contains(t, st.Error, "extraction failed")

	require.NoError(t, q.Shutdown(context.Background()))
}

// TestQueue_SubmitDoesNotBlockWhenFull fills the pool and the buffer, then
// checks that another submission still returns immediately.
func TestQueue_SubmitDoesNotBlockWhenFull(t *testing.T) {
	parser := &fakeParser{block: make(chan struct{})}
	q := receiptparser.NewQueue(parser, zerolog.Nop(),
		receiptparser.WithWorkers(1), receiptparser.WithQueueSize(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4; i++ {
			_, err := q.Submit(receiptparser.Job{ReceiptID: uuid.New()})
			assert.NoError(t, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(parser.block)
	require.NoError(t, q.Shutdown(context.Background()))

	parser.mu.Lock()
	defer parser.mu.Unlock()
	assert.Len(t, parser.calls, 4)
}

func TestQueue_SubmitAfterShutdown(t *testing.T) {
	q := receiptparser.NewQueue(&fakeParser{}, zerolog.Nop())
	require.NoError(t, q.Shutdown(context.Background()))

	_, err := q.Submit(receiptparser.Job{ReceiptID: uuid.New()})
	assert.ErrorIs(t, err, receiptparser.ErrQueueClosed)
}

func TestQueue_UnknownTask(t *testing.T) {
	q := receiptparser.NewQueue(&fakeParser{}, zerolog.Nop())
	defer q.Shutdown(context.Background())

	_, ok := q.Status("nope")
	assert.False(t, ok)
}
