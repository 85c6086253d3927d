package process

import (
	"context"
	"sync"
)

// Token is a level-triggered cancellation flag shared by one scan. It also
// tracks the processes spawned under it so that Cancel can reach them.
//
// A nil *Token is valid and never cancels.
type Token struct {
	once sync.Once
	done chan struct{}

	mu   sync.Mutex
	live map[*handle]struct{}
}

// NewToken returns an untriggered token.
func NewToken() *Token {
	return &Token{
		done: make(chan struct{}),
		live: make(map[*handle]struct{}),
	}
}

// Cancel sets the flag and signals every tracked process group to terminate.
// It is idempotent and does not wait for the processes to exit.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		close(t.done)

		t.mu.Lock()
		handles := make([]*handle, 0, len(t.live))
		for h := range t.live {
			handles = append(handles, h)
		}
		t.mu.Unlock()

		for _, h := range handles {
			_ = h.terminateTree()
		}
	})
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation. It is nil for a nil token.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Bind cancels the token when ctx is done. The returned function detaches
// the binding.
func (t *Token) Bind(ctx context.Context) (stop func() bool) {
	if t == nil {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, t.Cancel)
}

// Live returns the number of tracked processes.
func (t *Token) Live() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// track registers h. It returns false when the token is already cancelled,
// in which case the caller must terminate h itself.
func (t *Token) track(h *handle) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Cancelled() {
		return false
	}
	t.live[h] = struct{}{}
	return true
}

func (t *Token) untrack(h *handle) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.live, h)
	t.mu.Unlock()
}
