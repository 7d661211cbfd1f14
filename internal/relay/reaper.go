package relay

import (
	"log/slog"
	"time"
)

// Reaper evicts sessions idle past maxIdle. The registry lock is held only
// inside Snapshot and Remove; closing the peer socket happens outside it,
// which also unblocks that peer's read loop.
type Reaper struct {
	reg      *Registry
	delivery *Delivery
	interval time.Duration
	maxIdle  time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReaper(reg *Registry, delivery *Delivery, interval, maxIdle time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxIdle <= 0 {
		maxIdle = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		reg:      reg,
		delivery: delivery,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Stop signals the Run loop to exit.
func (r *Reaper) Stop() {
	close(r.stopCh)
}

// Wait blocks until the Run loop has completely finished.
func (r *Reaper) Wait() {
	<-r.doneCh
}

func (r *Reaper) Run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reaper) sweep() {
	now := time.Now()
	for _, p := range r.reg.Snapshot() {
		idle := now.Sub(p.LastActive)
		if idle <= r.maxIdle {
			continue
		}
		if _, ok := r.reg.Remove(p.Name); !ok {
			// Lost the race against the session's own cleanup.
			continue
		}
		_ = p.Conn.Close()
		r.logger.Info("evicted idle user", "username", p.Name, "idle", idle.String())
		r.delivery.Broadcast("INFO "+p.Name+" disconnected (idle timeout)", "")
	}
}
