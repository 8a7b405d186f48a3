package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func enqueueOrFail(t *testing.T, repo domain.OutboxRepository, msg domain.OutboxMessage) domain.OutboxMessage {
	t.Helper()
	stored, err := repo.Enqueue(msg)
	if err != nil {
		t.Fatalf("enqueue %s: %v", msg.EventType, err)
	}
	return stored
}

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	orderMsg := enqueueOrFail(t, repo, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{"id":"order-1"}`),
	})
	if orderMsg.ID == "" {
		t.Fatal("expected generated id for outbox message")
	}

	paymentMsg := enqueueOrFail(t, repo, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: "payment",
		AggregateID:   "pay-1",
		EventType:     "payment.succeeded",
		Payload:       []byte(`{"id":"pay-1"}`),
	})
	if paymentMsg.ID != "outbox-fixed-id" {
		t.Fatalf("expected caller-provided id to survive, got %q", paymentMsg.ID)
	}

	pending, err := repo.PullPending(0) // ветка дефолтного лимита
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats before marks: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats before marks: %+v", stats)
	}

	if err := repo.MarkSent(orderMsg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(paymentMsg.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	after, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected no pending after marks, got %d", len(after))
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected pending=0 after marks, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if err := repo.MarkSent("missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark sent missing id, got %v", err)
	}
	if err := repo.MarkFailed("missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on mark failed missing id, got %v", err)
	}
}

func TestOutboxRepository_PostgresOldestPending(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first := enqueueOrFail(t, repo, domain.OutboxMessage{
		AggregateType: "delivery",
		AggregateID:   "del-old",
		EventType:     "delivery.assigned",
		Payload:       []byte(`{"id":"del-old"}`),
	})

	time.Sleep(5 * time.Millisecond)

	enqueueOrFail(t, repo, domain.OutboxMessage{
		AggregateType: "delivery",
		AggregateID:   "del-new",
		EventType:     "delivery.assigned",
		Payload:       []byte(`{"id":"del-new"}`),
	})

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected non-zero oldest pending time")
	}

	// Задержка между Enqueue делает порядок по created_at детерминированным.
	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID {
		t.Fatalf("expected FIFO order starting with %s, got %v", first.ID, pending)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent first: %v", err)
	}
}
