// Package notifytest provides test doubles for the notify package.
package notifytest

import (
	"context"
	"sync"

	"github.com/flemzord/pulse/internal/notify"
)

// Recorder is a notify.Sink that records every notification. When Err is set
// the notification is still recorded and Err is returned.
type Recorder struct {
	Err error

	mu    sync.Mutex
	notes []notify.Notification
}

// Compile-time interface check.
var _ notify.Sink = (*Recorder)(nil)

// Notify implements notify.Sink.
func (r *Recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := append([]string(nil), n.Lines...)
	r.notes = append(r.notes, notify.Notification{Header: n.Header, Lines: lines, Filename: n.Filename})
	return r.Err
}

// Notifications returns a copy of everything recorded so far.
func (r *Recorder) Notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

// Reset clears the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
