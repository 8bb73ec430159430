package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits an event every interval carrying the number of open
// spans. A compile stuck in one method shows up as heartbeats whose open
// count never drops.
type Heartbeat struct {
	tracer Tracer
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// StartHeartbeat starts beating. It returns nil when t is disabled or
// interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{tracer: t, done: make(chan struct{})}
	h.wg.Add(1)
	go h.beat(interval)
	return h
}

func (h *Heartbeat) beat(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-h.done:
			return
		case now := <-ticker.C:
			h.tracer.Emit(&Event{
				Time:   now,
				Seq:    nextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeCommand,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", n),
				Open:   OpenSpans(),
			})
		}
	}
}

// Stop halts the heartbeat and waits for its goroutine. It is safe on nil
// and safe to call twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.done) })
	h.wg.Wait()
}
