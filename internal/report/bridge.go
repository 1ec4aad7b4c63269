// Package report renders colony snapshots for people and dashboards:
// a markdown report, JSON artifacts on disk and a one-directional push
// bridge for live consumers.
package report

import (
	"sync"

	"github.com/dejo1307/codecolony/internal/colony"
)

// Bridge is a one-directional push channel of snapshots. Push never blocks:
// when the consumer lags, the oldest buffered snapshot is dropped so delivery
// stays in cycle order.
type Bridge struct {
	mu     sync.Mutex
	ch     chan *colony.Snapshot
	closed bool
}

// NewBridge creates a bridge with the given buffer depth.
func NewBridge(depth int) *Bridge {
	if depth <= 0 {
		depth = 8
	}
	return &Bridge{ch: make(chan *colony.Snapshot, depth)}
}

// Push delivers a snapshot without blocking. Pushes after Close are dropped.
func (b *Bridge) Push(s *colony.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for {
		select {
		case b.ch <- s:
			return
		default:
			select {
			case <-b.ch:
			default:
			}
		}
	}
}

// Snapshots returns the consumer side of the bridge.
func (b *Bridge) Snapshots() <-chan *colony.Snapshot {
	return b.ch
}

// Close stops the bridge. Pending snapshots remain readable.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
