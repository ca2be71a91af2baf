package testutil

import "sync"

// ManualTicker collects deferred work until the test flushes it. It satisfies
// celledit.Ticker.
type ManualTicker struct {
	mu    sync.Mutex
	queue []func()
}

// Next queues fn for the next Flush.
func (m *ManualTicker) Next(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// Pending returns the number of queued functions.
func (m *ManualTicker) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Flush runs everything queued so far, in order. Work queued while flushing
// waits for the next Flush.
func (m *ManualTicker) Flush() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, fn := range queue {
		fn()
	}
	return len(queue)
}
