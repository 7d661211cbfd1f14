package relay

import "log/slog"

// Delivery fans lines out to registered sessions. Broadcast is two-phase:
// send to a snapshot first, then prune the peers whose write failed, so a
// dead peer never blocks delivery to the others and never corrupts the
// iteration.
type Delivery struct {
	reg    *Registry
	logger *slog.Logger
}

func NewDelivery(reg *Registry, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{reg: reg, logger: logger}
}

// Unicast writes one line to a single connection. Any failure means the
// peer is unreachable; the caller decides what to prune.
func (d *Delivery) Unicast(conn Conn, line string) error {
	return conn.WriteLine(line)
}

// Broadcast sends line to every registered session except exclude (empty
// string excludes no one). Peers whose write failed are removed from the
// registry afterward and their connections closed.
func (d *Delivery) Broadcast(line, exclude string) {
	peers := d.reg.Snapshot()

	var failed []Peer
	for _, p := range peers {
		if exclude != "" && p.Name == exclude {
			continue
		}
		if err := p.Conn.WriteLine(line); err != nil {
			failed = append(failed, p)
		}
	}

	for _, p := range failed {
		if _, ok := d.reg.Remove(p.Name); ok {
			d.logger.Info("removed unreachable user", "username", p.Name)
		}
		_ = p.Conn.Close()
	}
}
