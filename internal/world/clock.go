package world

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ClockListener receives a callback after every clock advance (one frame).
type ClockListener interface {
	OnTick(worldTime time.Time)
}

// Task is a unit of scheduled work. now is the world time the task was due at.
type Task func(now time.Time)

// Token is the cancellation handle for one scheduled task.
// A cancelled token never fires again.
type Token struct {
	name      string
	cancelled atomic.Bool
}

// Name returns the task name the token was issued for.
func (t *Token) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Cancel stops the task. Safe on nil and safe to call twice.
func (t *Token) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Active reports whether the task may still fire.
func (t *Token) Active() bool {
	return t != nil && !t.cancelled.Load()
}

type entry struct {
	at     time.Time
	seq    uint64
	period time.Duration
	fn     Task
	token  *Token
}

// timerQueue orders entries by due time, then by scheduling order.
type timerQueue []*entry

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q timerQueue) Swap(i, j int)  { q[i], q[j] = q[j], q[i] }
func (q *timerQueue) Push(x any)    { *q = append(*q, x.(*entry)) }
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// WorldClock is the single execution context of the simulation. It keeps a
// virtual world time, runs periodic tasks and one-shot delays in due order,
// and notifies listeners after each advance. Start drives it from a real-time
// ticker; tests call Advance directly.
type WorldClock struct {
	speed     float64 // time multiplier, 1.0 = realtime
	interval  time.Duration
	listeners []ClockListener
	worldTime time.Time
	queue     timerQueue
	seq       uint64
	mu        sync.RWMutex
	runMu     sync.Mutex // held while tasks run; one advance at a time
	cancel    context.CancelFunc
	logger    *zap.Logger
}

// NewWorldClock creates a clock with the given frame interval and speed multiplier.
func NewWorldClock(interval time.Duration, speed float64, logger *zap.Logger) *WorldClock {
	return &WorldClock{
		speed:     speed,
		interval:  interval,
		worldTime: time.Now(),
		logger:    logger,
	}
}

// AddListener registers a frame listener.
func (c *WorldClock) AddListener(l ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// WorldTime returns the current simulated world time.
func (c *WorldClock) WorldTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldTime
}

// SetSpeed changes the time multiplier.
func (c *WorldClock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

// After schedules fn to run once, d from now.
func (c *WorldClock) After(name string, d time.Duration, fn Task) *Token {
	if d < 0 {
		d = 0
	}
	return c.schedule(name, d, 0, fn)
}

// Every schedules fn to run each period, first at now+period.
// A non-positive period yields an already cancelled token.
func (c *WorldClock) Every(name string, period time.Duration, fn Task) *Token {
	if period <= 0 {
		c.logger.Warn("refusing periodic task with non-positive period",
			zap.String("task", name), zap.Duration("period", period))
		t := &Token{name: name}
		t.Cancel()
		return t
	}
	return c.schedule(name, period, period, fn)
}

func (c *WorldClock) schedule(name string, delay, period time.Duration, fn Task) *Token {
	tok := &Token{name: name}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	heap.Push(&c.queue, &entry{
		at:     c.worldTime.Add(delay),
		seq:    c.seq,
		period: period,
		fn:     fn,
		token:  tok,
	})
	return tok
}

// Pending returns the number of scheduled tasks that may still fire.
func (c *WorldClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.queue {
		if e.token.Active() {
			n++
		}
	}
	return n
}

// Advance moves world time forward by d, running every task that falls due
// in order. Tasks scheduled by running tasks are honoured within the same call.
func (c *WorldClock) Advance(d time.Duration) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	target := c.worldTime.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.queue[0].at.After(target) {
			c.mu.Unlock()
			break
		}
		e := heap.Pop(&c.queue).(*entry)
		if e.at.After(c.worldTime) {
			c.worldTime = e.at
		}
		c.mu.Unlock()

		if !e.token.Active() {
			continue
		}
		e.fn(e.at)

		if e.period > 0 && e.token.Active() {
			c.mu.Lock()
			c.seq++
			e.at = e.at.Add(e.period)
			e.seq = c.seq
			heap.Push(&c.queue, e)
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.worldTime = target
	listeners := make([]ClockListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnTick(target)
	}
}

// Start begins the real-time frame loop in a background goroutine. No-op
// while the loop is already running.
func (c *WorldClock) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.loop(ctx)
	c.logger.Info("world clock started",
		zap.Duration("interval", c.interval),
		zap.Float64("speed", c.speed))
}

// Stop halts the frame loop. Scheduled tasks stay queued and Start may be
// called again.
func (c *WorldClock) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.logger.Info("world clock stopped")
	}
}

// Running reports whether the real-time loop is active.
func (c *WorldClock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancel != nil
}

func (c *WorldClock) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			step := time.Duration(float64(c.interval) * c.speed)
			c.mu.RUnlock()
			c.Advance(step)
		}
	}
}
