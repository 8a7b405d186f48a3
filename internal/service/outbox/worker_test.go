package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func pendingMessage(id, aggregateType, aggregateID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       []byte(`{"status":"confirmed"}`),
	}
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		pendingMessage("msg-1", "order", "order-1", "order.confirmed"),
		pendingMessage("msg-2", "payment", "pay-1", "payment.succeeded"),
	}}
	publisher := &fakePublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 2 {
		t.Fatalf("expected 2 publish calls, got %d", got)
	}
	if len(repo.sentIDs) != 2 || repo.sentIDs[0] != "msg-1" || repo.sentIDs[1] != "msg-2" {
		t.Fatalf("unexpected sent marks: %v", repo.sentIDs)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", repo.failedIDs)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		pendingMessage("msg-3", "delivery", "del-1", "delivery.completed"),
	}}
	publisher := &fakePublisher{err: errors.New("publish failed")}
	dlqPublisher := &fakePublisher{}

	worker := NewWorker(repo, publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if len(repo.sentIDs) != 0 {
		t.Fatalf("expected no sent marks, got %v", repo.sentIDs)
	}
	if len(repo.failedIDs) != 1 || repo.failedIDs[0] != "msg-3" {
		t.Fatalf("unexpected failed marks: %v", repo.failedIDs)
	}
	if got := dlqPublisher.calls(); got != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", got)
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		pendingMessage("msg-4", "order", "order-4", "order.placed"),
	}}
	publisher := &fakePublisher{sequenceErrors: []error{
		errors.New("attempt 1"),
		errors.New("attempt 2"),
		nil,
	}}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if len(repo.sentIDs) != 1 || repo.sentIDs[0] != "msg-4" {
		t.Fatalf("unexpected sent marks: %v", repo.sentIDs)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", repo.failedIDs)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeOutboxRepo{}, &fakePublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_RetryBackoffGrowth(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeOutboxRepo{}, &fakePublisher{}, WithRetryBaseDelay(50*time.Millisecond))

	if got := worker.retryBackoff(1); got != 50*time.Millisecond {
		t.Fatalf("attempt 1: expected 50ms, got %v", got)
	}
	if got := worker.retryBackoff(3); got != 200*time.Millisecond {
		t.Fatalf("attempt 3: expected 200ms, got %v", got)
	}

	zero := NewWorker(&fakeOutboxRepo{}, &fakePublisher{}, WithRetryBaseDelay(0))
	if got := zero.retryBackoff(5); got != 0 {
		t.Fatalf("zero base delay should disable backoff, got %v", got)
	}
}

type fakeOutboxRepo struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (f *fakeOutboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (f *fakeOutboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(f.pending) {
		return append([]domain.OutboxMessage(nil), f.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), f.pending[:limit]...), nil
}

func (f *fakeOutboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(f.pending)}
	if len(f.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (f *fakeOutboxRepo) MarkSent(id string) error {
	f.sentIDs = append(f.sentIDs, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id string) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

type fakePublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
}

func (f *fakePublisher) Publish(_ domain.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	if len(f.sequenceErrors) > 0 {
		err := f.sequenceErrors[0]
		f.sequenceErrors = f.sequenceErrors[1:]
		return err
	}
	return f.err
}

func (f *fakePublisher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

var (
	_ domain.OutboxRepository = (*fakeOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*fakePublisher)(nil)
)
