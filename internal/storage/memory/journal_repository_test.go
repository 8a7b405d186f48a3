package memory_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
)

func TestNotificationJournal_RecordSeen(t *testing.T) {
	journal := memory.NewNotificationJournal()

	entry := domain.NotificationRecord{
		GatewayOrderID: "GW-1",
		StatusCode:     2,
		Signature:      "ABCDEF",
		Outcome:        "confirmed",
		TTLAt:          time.Now().UTC().Add(time.Hour),
	}
	if err := journal.Record(entry); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	seen, err := journal.Seen("GW-1", 2, "ABCDEF")
	if err != nil {
		t.Fatalf("seen failed: %v", err)
	}
	if !seen {
		t.Fatal("expected notification to be seen")
	}

	seen, err = journal.Seen("GW-1", -2, "ABCDEF")
	if err != nil {
		t.Fatalf("seen failed: %v", err)
	}
	if seen {
		t.Fatal("different status code must not match")
	}
}

func TestNotificationJournal_ExpiredNotSeen(t *testing.T) {
	journal := memory.NewNotificationJournal()

	entry := domain.NotificationRecord{
		GatewayOrderID: "GW-1",
		StatusCode:     2,
		Signature:      "ABCDEF",
		TTLAt:          time.Now().UTC().Add(-time.Minute),
	}
	if err := journal.Record(entry); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	seen, err := journal.Seen("GW-1", 2, "ABCDEF")
	if err != nil {
		t.Fatalf("seen failed: %v", err)
	}
	if seen {
		t.Fatal("expired notification must not be seen")
	}
}

func TestNotificationJournal_DeleteExpired(t *testing.T) {
	journal := memory.NewNotificationJournal()
	now := time.Now().UTC()

	expired := domain.NotificationRecord{GatewayOrderID: "GW-1", StatusCode: 2, Signature: "A", TTLAt: now.Add(-time.Hour)}
	fresh := domain.NotificationRecord{GatewayOrderID: "GW-2", StatusCode: 2, Signature: "B", TTLAt: now.Add(time.Hour)}
	if err := journal.Record(expired); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := journal.Record(fresh); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	deleted, err := journal.DeleteExpired(now, 10)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	seen, err := journal.Seen("GW-2", 2, "B")
	if err != nil {
		t.Fatalf("seen failed: %v", err)
	}
	if !seen {
		t.Fatal("fresh notification must remain")
	}
}
