package watch

import (
	"slices"
	"strings"
	"sync"
)

// StatusRecorder keeps the most recent TickResult of every job and fans new
// results out to subscribers.
type StatusRecorder struct {
	mu     sync.RWMutex
	last   map[string]TickResult
	subs   map[int]chan TickResult
	nextID int
}

// NewStatusRecorder returns an empty recorder.
func NewStatusRecorder() *StatusRecorder {
	return &StatusRecorder{
		last: make(map[string]TickResult),
		subs: make(map[int]chan TickResult),
	}
}

// ObserveTick implements Observer. Subscribers whose buffer is full miss
// the result; a slow reader never stalls a tick.
func (r *StatusRecorder) ObserveTick(res TickResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[res.Job] = res

	for _, ch := range r.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// Last returns the latest result per job, ordered by job name.
func (r *StatusRecorder) Last() []TickResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TickResult, 0, len(r.last))
	for _, res := range r.last {
		out = append(out, res)
	}
	slices.SortFunc(out, func(a, b TickResult) int {
		return strings.Compare(a.Job, b.Job)
	})
	return out
}

// Subscribe returns a channel receiving every subsequent result and a
// cancel func that unregisters and closes it. Cancel is idempotent.
func (r *StatusRecorder) Subscribe(buffer int) (<-chan TickResult, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan TickResult, buffer)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (r *StatusRecorder) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
