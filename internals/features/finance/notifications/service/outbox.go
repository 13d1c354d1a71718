package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type pendingNote struct {
	userID   uuid.UUID
	title    string
	message  string
	category string
}

// Outbox buffers notifications and activity entries produced inside a DB
// transaction. Flush runs after commit; a rolled back unit simply drops its
// outbox, so nothing is announced for work that did not happen.
type Outbox struct {
	mu         sync.Mutex
	notes      []pendingNote
	messages   []InternalMessage
	activities []ActivityEntry
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Notify(userID uuid.UUID, title, message, category string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notes = append(o.notes, pendingNote{userID: userID, title: title, message: message, category: category})
}

func (o *Outbox) Message(msg InternalMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func (o *Outbox) Activity(e ActivityEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activities = append(o.activities, e)
}

// Len jumlah notifikasi + pesan yang antre.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.notes) + len(o.messages)
}

// Reset buang semua antrean (dipakai saat unit of work diulang).
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notes, o.messages, o.activities = nil, nil, nil
}

// Flush mengirim antrean. Gagal cukup di-log, tidak dikembalikan.
func (o *Outbox) Flush(ctx context.Context, n Notifier, act *ActivityLogger, log *zap.Logger) {
	o.mu.Lock()
	notes, messages, activities := o.notes, o.messages, o.activities
	o.notes, o.messages, o.activities = nil, nil, nil
	o.mu.Unlock()

	if n != nil {
		for _, p := range notes {
			if err := n.SendNotification(ctx, p.userID, p.title, p.message, p.category); err != nil {
				log.Warn("notification failed", zap.Stringer("user_id", p.userID), zap.String("title", p.title), zap.Error(err))
			}
		}
		for _, m := range messages {
			if err := n.SendInternalMessage(ctx, m); err != nil {
				log.Warn("internal message failed", zap.Stringer("receiver_id", m.ReceiverID), zap.Error(err))
			}
		}
	}
	if act != nil {
		for _, e := range activities {
			if err := act.LogFinancialActivity(ctx, e); err != nil {
				log.Warn("activity log failed", zap.String("action", e.Action), zap.Error(err))
			}
		}
	}
}
