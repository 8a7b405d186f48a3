package notify_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/invoice"
	"github.com/vladislavdragonenkov/dms/internal/service/mail"
	"github.com/vladislavdragonenkov/dms/internal/service/notify"
)

func sampleOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		OrderNumber:   "ORD-" + id,
		CustomerName:  "Test Customer",
		CustomerEmail: "customer@example.com",
	}
}

func TestWorker_SendsInvoice(t *testing.T) {
	generator := invoice.NewMockGenerator()
	sender := mail.NewMockSender()
	worker := notify.NewWorker(generator, sender)

	worker.EnqueueInvoice(sampleOrder("order-1"))
	worker.ProcessQueued()

	if generator.GenerateCalls != 1 {
		t.Fatalf("expected 1 generate call, got %d", generator.GenerateCalls)
	}
	if sender.SendCalls != 1 {
		t.Fatalf("expected 1 send call, got %d", sender.SendCalls)
	}
	if sender.LastRecipient != "customer@example.com" {
		t.Fatalf("unexpected recipient: %s", sender.LastRecipient)
	}
	if sender.LastOrderNumber != "ORD-order-1" {
		t.Fatalf("unexpected order number: %s", sender.LastOrderNumber)
	}
	if string(sender.LastInvoice) != string(generator.Payload) {
		t.Fatal("sender must receive the generated invoice")
	}
}

func TestWorker_GenerateFailureDoesNotSend(t *testing.T) {
	generator := invoice.NewMockGenerator()
	generator.GenerateErr = errors.New("renderer offline")
	sender := mail.NewMockSender()
	worker := notify.NewWorker(generator, sender)

	worker.EnqueueInvoice(sampleOrder("order-1"))
	worker.ProcessQueued()

	if sender.SendCalls != 0 {
		t.Fatalf("expected no send calls, got %d", sender.SendCalls)
	}
}

func TestWorker_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	generator := invoice.NewMockGenerator()
	sender := mail.NewMockSender()
	sender.SendErr = errors.New("smtp unavailable")
	worker := notify.NewWorker(generator, sender, notify.WithBreakerFailures(2))

	for i := 0; i < 5; i++ {
		worker.EnqueueInvoice(sampleOrder("order-1"))
	}
	worker.ProcessQueued()

	// Два реальных вызова открывают breaker, остальные три пропускаются.
	if sender.SendCalls != 2 {
		t.Fatalf("expected 2 send calls before breaker opened, got %d", sender.SendCalls)
	}
	if generator.GenerateCalls != 5 {
		t.Fatalf("expected 5 generate calls, got %d", generator.GenerateCalls)
	}
}

func TestWorker_FullQueueDropsInvoice(t *testing.T) {
	generator := invoice.NewMockGenerator()
	sender := mail.NewMockSender()
	worker := notify.NewWorker(generator, sender, notify.WithQueueSize(1))

	worker.EnqueueInvoice(sampleOrder("order-1"))
	worker.EnqueueInvoice(sampleOrder("order-2"))
	worker.ProcessQueued()

	if sender.SendCalls != 1 {
		t.Fatalf("expected 1 send call, got %d", sender.SendCalls)
	}
	if sender.LastOrderNumber != "ORD-order-1" {
		t.Fatalf("unexpected order number: %s", sender.LastOrderNumber)
	}
}
