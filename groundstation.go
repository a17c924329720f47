package telelink

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Forwarder passes decoded telemetry on to another consumer. Implementations
// must not block.
type Forwarder interface {
	Forward(rec *TelemetryRecord, stats RxStats) error
}

// Snapshotter is the read side of a Receiver.
type Snapshotter interface {
	Latest() (TelemetryRecord, bool)
	Statistics() RxStats
}

// GroundStation polls the receiver on its own schedule and hands every new
// record to the registered forwarders.
type GroundStation struct {
	rx         Snapshotter
	forwarders []Forwarder
	last       TelemetryRecord
	hasLast    bool
}

func NewGroundStation(rx Snapshotter) *GroundStation {
	return &GroundStation{
		rx: rx,
	}
}

func (g *GroundStation) AddForwarder(fwd Forwarder) {
	g.forwarders = append(g.forwarders, fwd)
}

// Poll forwards the latest record if it differs from the one forwarded last
// and reports whether it did.
func (g *GroundStation) Poll() bool {
	rec, ok := g.rx.Latest()
	if !ok || (g.hasLast && rec == g.last) {
		return false
	}
	g.last = rec
	g.hasLast = true
	stats := g.rx.Statistics()
	for _, fwd := range g.forwarders {
		if err := fwd.Forward(&rec, stats); err != nil {
			log.WithField("err", err).Warn("unable to forward telemetry")
		}
	}
	return true
}

// Run polls every interval and logs the link status every statusInterval
// until ctx is done. onUpdate, when set, is called with every new record.
func (g *GroundStation) Run(ctx context.Context, interval, statusInterval time.Duration, onUpdate func(TelemetryRecord)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextStatus := timeNow().Add(statusInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if g.Poll() && onUpdate != nil {
			onUpdate(g.last)
		}
		if statusInterval > 0 && !timeNow().Before(nextStatus) {
			s := g.rx.Statistics()
			log.WithFields(log.Fields{
				"hz":          s.Hz,
				"packets":     s.PacketsReceived,
				"errors":      s.DecodeErrors,
				"successRate": s.SuccessRate,
				"uptime":      s.Uptime.Truncate(time.Second),
			}).Info("link status")
			nextStatus = timeNow().Add(statusInterval)
		}
	}
}
