package gateway

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SnapshotFunc produces the frame pushed to render clients.
type SnapshotFunc func() any

// SnapshotPublisher is a world clock listener that pushes a snapshot to the
// render socket at most once per interval of world time.
type SnapshotPublisher struct {
	ws       *WebSocketAdapter
	snapshot SnapshotFunc
	interval time.Duration

	mu       sync.Mutex
	lastPush time.Time
	pushed   int
	logger   *zap.Logger
}

// NewSnapshotPublisher creates a publisher. A zero interval pushes every frame.
func NewSnapshotPublisher(ws *WebSocketAdapter, fn SnapshotFunc, interval time.Duration, logger *zap.Logger) *SnapshotPublisher {
	return &SnapshotPublisher{ws: ws, snapshot: fn, interval: interval, logger: logger}
}

// OnTick implements world.ClockListener.
func (p *SnapshotPublisher) OnTick(worldTime time.Time) {
	p.mu.Lock()
	if !p.lastPush.IsZero() && worldTime.Sub(p.lastPush) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastPush = worldTime
	p.mu.Unlock()

	// Nobody is watching; skip building the snapshot.
	if p.ws.Clients() == 0 {
		return
	}
	if err := p.ws.PushSnapshot(p.snapshot()); err != nil {
		p.logger.Warn("snapshot push failed", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.pushed++
	p.mu.Unlock()
}

// Pushed returns how many snapshots have been pushed.
func (p *SnapshotPublisher) Pushed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushed
}
