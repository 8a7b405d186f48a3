package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// journalKey — ключ дедупликации уведомлений шлюза.
type journalKey struct {
	gatewayOrderID string
	statusCode     int32
	signature      string
}

// notificationJournalInMemory — in-memory журнал обработанных уведомлений.
type notificationJournalInMemory struct {
	mu      sync.RWMutex
	entries map[journalKey]domain.NotificationRecord
}

// NewNotificationJournal создаёт in-memory журнал уведомлений платёжного шлюза.
func NewNotificationJournal() domain.NotificationJournal {
	return &notificationJournalInMemory{
		entries: make(map[journalKey]domain.NotificationRecord),
	}
}

// Record фиксирует обработанное уведомление. Повторная запись той же тройки
// перезаписывает предыдущую.
func (r *notificationJournalInMemory) Record(entry domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	key := journalKey{
		gatewayOrderID: entry.GatewayOrderID,
		statusCode:     entry.StatusCode,
		signature:      entry.Signature,
	}
	r.entries[key] = entry
	return nil
}

// Seen сообщает, обрабатывалось ли уже уведомление с той же тройкой.
// Записи с истёкшим TTL считаются отсутствующими.
func (r *notificationJournalInMemory) Seen(gatewayOrderID string, statusCode int32, signature string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := journalKey{
		gatewayOrderID: gatewayOrderID,
		statusCode:     statusCode,
		signature:      signature,
	}
	entry, ok := r.entries[key]
	if !ok {
		return false, nil
	}
	if !entry.TTLAt.IsZero() && entry.TTLAt.Before(time.Now().UTC()) {
		return false, nil
	}
	return true, nil
}

// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
func (r *notificationJournalInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	deleted := 0
	for key, entry := range r.entries {
		if entry.TTLAt.IsZero() || !entry.TTLAt.Before(before) {
			continue
		}
		delete(r.entries, key)
		deleted++
		if deleted >= limit {
			break
		}
	}
	return deleted, nil
}

var _ domain.NotificationJournal = (*notificationJournalInMemory)(nil)
