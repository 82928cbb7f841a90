package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits periodic liveness events while long subprocesses run.
// Heartbeats without a matching span end point at a stuck llc invocation.
type Heartbeat struct {
	stop chan struct{}
	once sync.Once
	done sync.WaitGroup
}

// StartHeartbeat starts emitting to tracer every interval. It returns nil
// when tracing is disabled or interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{})}
	h.done.Add(1)
	go func() {
		defer h.done.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for beat := 1; ; beat++ {
			select {
			case <-ticker.C:
				tracer.Emit(&Event{
					Time:   time.Now(),
					Seq:    NextSeq(),
					Kind:   KindHeartbeat,
					Scope:  ScopeDriver,
					GID:    goroutineID(),
					Name:   "heartbeat",
					Detail: "#" + strconv.Itoa(beat),
				})
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop ends the heartbeat goroutine and waits for it. Safe to call twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.done.Wait()
}
