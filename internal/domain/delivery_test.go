package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func TestDeliveryStatusChain(t *testing.T) {
	chain := []domain.DeliveryStatus{
		domain.DeliveryStatusPendingAssignment,
		domain.DeliveryStatusAssigned,
		domain.DeliveryStatusPickedUp,
		domain.DeliveryStatusInTransit,
		domain.DeliveryStatusArrived,
		domain.DeliveryStatusDelivered,
	}

	for i := 0; i < len(chain)-1; i++ {
		if !chain[i].CanTransitionTo(chain[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
	}

	// Пропуск шага цепочки недопустим.
	if domain.DeliveryStatusAssigned.CanTransitionTo(domain.DeliveryStatusInTransit) {
		t.Fatal("assigned -> in_transit must be rejected")
	}
	if domain.DeliveryStatusPickedUp.CanTransitionTo(domain.DeliveryStatusDelivered) {
		t.Fatal("picked_up -> delivered must be rejected")
	}
}

func TestDeliveryStatusFailFromInFlight(t *testing.T) {
	for _, s := range []domain.DeliveryStatus{
		domain.DeliveryStatusPendingAssignment,
		domain.DeliveryStatusAssigned,
		domain.DeliveryStatusPickedUp,
		domain.DeliveryStatusInTransit,
		domain.DeliveryStatusArrived,
	} {
		if !s.CanTransitionTo(domain.DeliveryStatusFailed) {
			t.Fatalf("expected %s -> failed to be allowed", s)
		}
		if !s.CanTransitionTo(domain.DeliveryStatusReturned) {
			t.Fatalf("expected %s -> returned to be allowed", s)
		}
	}
}

func TestDeliveryStatusTerminalRejectsAll(t *testing.T) {
	for _, s := range []domain.DeliveryStatus{
		domain.DeliveryStatusDelivered,
		domain.DeliveryStatusFailed,
		domain.DeliveryStatusReturned,
	} {
		if s.CanTransitionTo(domain.DeliveryStatusFailed) || s.CanTransitionTo(domain.DeliveryStatusAssigned) {
			t.Fatalf("terminal status %s must reject transitions", s)
		}
	}
}
