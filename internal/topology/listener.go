package topology

import (
	"context"
	"time"
)

// DefaultPollInterval is used when a Listener is created with a zero interval.
const DefaultPollInterval = time.Second

// Listener merges topology changes committed by other instances.
type Listener struct {
	topo     *Topology
	interval time.Duration
}

// Listener returns a listener polling the topology log every interval.
func (t *Topology) Listener(interval time.Duration) *Listener {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Listener{topo: t, interval: interval}
}

// Poll merges all pending log rows once and returns how many were merged.
// Rows written by this instance are skipped.
func (l *Listener) Poll(ctx context.Context) (int, error) {
	return l.topo.catchUp(ctx, l.topo.db)
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.topo.logger.Info("topology listener started", "instance", l.topo.instanceID, "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.topo.logger.Info("topology listener stopped", "instance", l.topo.instanceID)
			return nil
		case <-ticker.C:
			if _, err := l.Poll(ctx); err != nil && ctx.Err() == nil {
				l.topo.logger.Error("topology poll failed", "error", err)
			}
		}
	}
}
