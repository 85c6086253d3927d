package process

import (
	"strings"
	"sync"
	"time"
)

// maxPending bounds lines buffered between two flushes.
const maxPending = 5000

// forwarder coalesces output lines and hands them to fn at most once per
// interval, always from the same goroutine.
type forwarder struct {
	fn    func(string)
	mu    sync.Mutex
	queue []string
	stop  chan struct{}
	done  chan struct{}
}

func startForwarder(fn func(string), every time.Duration) *forwarder {
	f := &forwarder{
		fn:   fn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if fn == nil {
		close(f.done)
		return f
	}
	if every <= 0 {
		every = DefaultThrottle
	}

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.flush()
			case <-f.stop:
				f.flush()
				return
			}
		}
	}()
	return f
}

func (f *forwarder) push(line string) {
	if f.fn == nil {
		return
	}
	f.mu.Lock()
	if len(f.queue) >= maxPending {
		f.queue = f.queue[1:]
	}
	f.queue = append(f.queue, line)
	f.mu.Unlock()
}

func (f *forwarder) flush() {
	f.mu.Lock()
	batch := f.queue
	f.queue = nil
	f.mu.Unlock()

	if len(batch) > 0 {
		f.fn(strings.Join(batch, "\n"))
	}
}

// close flushes what is left and waits for the forwarding goroutine.
func (f *forwarder) close() {
	if f.fn != nil {
		close(f.stop)
	}
	<-f.done
}
