package runtime

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultPingInterval = 5 * time.Second
	DefaultDeathTimeout = 1 * time.Second
)

// Heartbeat drives the liveness cycle of a single connection.
//
// Every interval it probes the peer and arms a death timer. A pong disarms
// the pending death timer and leaves the cycle untouched. If the death
// timer expires first, onDead runs once and the heartbeat ends. There is no
// grace count: one missed pong is enough.
type Heartbeat struct {
	log          *slog.Logger
	interval     time.Duration
	deathTimeout time.Duration
	probe        func() error

	pong      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewHeartbeat(log *slog.Logger, interval, deathTimeout time.Duration, probe func() error) *Heartbeat {
	return &Heartbeat{
		log:          log,
		interval:     interval,
		deathTimeout: deathTimeout,
		probe:        probe,
		pong:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the liveness cycle. Starting a stopped heartbeat returns
// without ever calling onDead.
func (h *Heartbeat) Start(onDead func()) {
	h.startOnce.Do(func() {
		go h.run(onDead)
	})
}

// Pong records a liveness response. It never blocks.
func (h *Heartbeat) Pong() {
	select {
	case h.pong <- struct{}{}:
	default:
	}
}

// Stop cancels both timers. No callback fires once Stop has returned,
// unless onDead was already running.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Done is closed when the liveness cycle has ended.
func (h *Heartbeat) Done() <-chan struct{} {
	return h.done
}

func (h *Heartbeat) run(onDead func()) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var (
		deathTimer *time.Timer
		death      <-chan time.Time
	)
	disarm := func() {
		if deathTimer != nil {
			deathTimer.Stop()
			deathTimer, death = nil, nil
		}
	}
	defer disarm()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			// A probe still waiting for its pong keeps its original deadline.
			if deathTimer == nil {
				deathTimer = time.NewTimer(h.deathTimeout)
				death = deathTimer.C
			}
			if err := h.probe(); err != nil {
				h.log.Debug("Liveness probe failed", "error", err)
			}
		case <-h.pong:
			disarm()
		case <-death:
			select {
			case <-h.stop:
				return
			default:
			}
			onDead()
			return
		}
	}
}
