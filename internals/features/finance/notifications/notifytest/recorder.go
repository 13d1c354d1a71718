// Package notifytest provides an in-memory Notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"impactacademy_backend/internals/features/finance/notifications/service"
)

type Note struct {
	UserID   uuid.UUID
	Title    string
	Message  string
	Category string
}

type Recorder struct {
	mu       sync.Mutex
	Notes    []Note
	Messages []service.InternalMessage
	Err      error
}

var _ service.Notifier = (*Recorder)(nil)

func (r *Recorder) SendNotification(_ context.Context, userID uuid.UUID, title, message, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notes = append(r.Notes, Note{UserID: userID, Title: title, Message: message, Category: category})
	return r.Err
}

func (r *Recorder) SendInternalMessage(_ context.Context, msg service.InternalMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
	return r.Err
}

// Count returns the number of notifications in category.
func (r *Recorder) Count(category string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.Notes {
		if note.Category == category {
			n++
		}
	}
	return n
}
