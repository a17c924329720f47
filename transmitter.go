package telelink

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type TransmitterConfig struct {
	Rates          RatesConfig
	Markers        bool
	LinkCeilingBps int
	// zero disables periodic statistics logging
	StatsInterval  time.Duration
}

// Transmitter builds one record per tick from the sample cache, encodes it and
// writes it to the radio link.
type Transmitter struct {
	cfg      TransmitterConfig
	cache    *SampleCache
	w        io.Writer
	sched    *Scheduler
	interval time.Duration
	start    time.Time

	// medium and low tier values as last sent
	last TelemetryRecord

	packets   atomic.Uint64
	bytes     atomic.Uint64
	writeErrs atomic.Uint64
}

func NewTransmitter(cfg TransmitterConfig, cache *SampleCache, w io.Writer) (*Transmitter, error) {
	sched, err := NewScheduler(cfg.Rates.High, cfg.Rates.Medium, cfg.Rates.Low)
	if err != nil {
		return nil, err
	}
	t := &Transmitter{
		cfg:      cfg,
		cache:    cache,
		w:        w,
		sched:    sched,
		interval: time.Second / time.Duration(cfg.Rates.High),
		start:    timeNow(),
	}
	bps := t.frameLen() * cfg.Rates.High * 8
	if cfg.LinkCeilingBps > 0 && bps > cfg.LinkCeilingBps {
		log.WithFields(log.Fields{
			"bps":     bps,
			"ceiling": cfg.LinkCeilingBps,
		}).Warn("transmit rate exceeds radio link ceiling")
	}
	return t, nil
}

func (t *Transmitter) frameLen() int {
	if t.cfg.Markers {
		return FrameSize
	}
	return PacketSize
}

// build assembles the record for the current tick and updates the last-sent
// tier values when a tier is due.
func (t *Transmitter) build() TelemetryRecord {
	current := t.cache.Snapshot()

	rec := TelemetryRecord{
		RPM:           current.RPM,
		SteeringAngle: current.SteeringAngle,
		BrakePressure: current.BrakePressure,
		AccelX:        current.AccelX,
		AccelY:        current.AccelY,
		SuspensionFL:  current.SuspensionFL,
		SuspensionFR:  current.SuspensionFR,
		SuspensionRL:  current.SuspensionRL,
		SuspensionRR:  current.SuspensionRR,
	}
	if t.sched.RefreshMedium() {
		t.last.copyMedium(&current)
	}
	rec.copyMedium(&t.last)

	if t.sched.RefreshLow() {
		t.last.copyLow(&current)
	}
	rec.copyLow(&t.last)

	rec.Timestamp = uint32(timeNow().Sub(t.start) / time.Millisecond)
	return rec
}

// Tick builds, encodes and writes one packet, then advances the scheduler.
// The scheduler advances even when the write fails.
func (t *Transmitter) Tick() error {
	defer t.sched.Advance()

	packet := Encode(t.build())
	if t.cfg.Markers {
		packet = Frame(packet)
	}
	n, err := t.w.Write(packet)
	if err == nil && n < len(packet) {
		err = io.ErrShortWrite
	}
	if err != nil {
		t.writeErrs.Add(1)
		return errors.Wrap(err, "unable to write telemetry packet")
	}
	t.packets.Add(1)
	t.bytes.Add(uint64(n))
	return nil
}

// Run ticks at the high tier rate until ctx is done. A tick that overruns its
// interval is followed immediately by the next one, missed ticks are not
// made up.
func (t *Transmitter) Run(ctx context.Context) error {
	log.WithField("interval", t.interval).Info("transmitter started")
	nextStats := timeNow().Add(t.cfg.StatsInterval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		begin := timeNow()
		if err := t.Tick(); err != nil {
			log.WithField("err", err).Warn("transmit tick failed")
		}
		if t.cfg.StatsInterval > 0 && !timeNow().Before(nextStats) {
			t.logStatistics()
			nextStats = timeNow().Add(t.cfg.StatsInterval)
		}

		sleep := t.interval - timeNow().Sub(begin)
		if sleep <= 0 {
			continue
		}
		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transmitter) Statistics() TxStats {
	return txStats(t.packets.Load(), t.bytes.Load(), t.writeErrs.Load(), timeNow().Sub(t.start))
}

func (t *Transmitter) logStatistics() {
	s := t.Statistics()
	log.WithFields(log.Fields{
		"packets":     s.PacketsSent,
		"hz":          s.PacketsPerSec,
		"bytesPerSec": int(s.BytesPerSec),
		"kbps":        s.Kbps,
		"writeErrors": s.WriteErrors,
		"uptime":      s.Uptime.Truncate(time.Second),
	}).Info("transmitter statistics")
}
