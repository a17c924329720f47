package telelink

import (
	"context"
	"sync"
	"time"

	"github.com/jd3nn1s/telelink/serialport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	stopTimeout      = 3 * time.Second
	readBufferSize   = 256
	readErrorBackoff = 100 * time.Millisecond
)

// to allow testing
var openPort = func(name string, baud int, readTimeout time.Duration) (Port, error) {
	return serialport.Open(name, baud, readTimeout)
}

var detectPort = serialport.Detect

type ReceiverConfig struct {
	// empty to auto-detect
	Port        string
	Baud        int
	Markers     bool
	ReadTimeout time.Duration
}

// Receiver reads the link on its own goroutine and publishes the newest
// decoded record. Readers always see the latest record, never a backlog.
type Receiver struct {
	cfg ReceiverConfig

	// lifecycle
	mu       sync.Mutex
	port     Port
	portName string
	cancel   context.CancelFunc
	done     chan struct{}

	// published state
	dataMu    sync.Mutex
	latest    TelemetryRecord
	hasLatest bool
	received  uint64
	errs      uint64
	readErrs  uint64
	arrivals  arrivalRing
	startedAt time.Time
}

func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultRxReadTimeout
	}
	return &Receiver{
		cfg:       cfg,
		startedAt: timeNow(),
	}
}

// Connect opens the link, auto-detecting the device when no port is
// configured. It is a no-op when already connected.
func (r *Receiver) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connect()
}

func (r *Receiver) connect() error {
	if r.port != nil {
		return nil
	}
	name := r.cfg.Port
	if name == "" {
		detected, err := detectPort()
		if err != nil {
			return errors.Wrap(err, "unable to find receiver port")
		}
		name = detected
	}
	port, err := openPort(name, r.cfg.Baud, r.cfg.ReadTimeout)
	if err != nil {
		return errors.Wrapf(err, "unable to open receiver port %s", name)
	}
	r.port = port
	r.portName = name
	log.WithFields(log.Fields{
		"port": name,
		"baud": r.cfg.Baud,
	}).Info("receiver connected")
	return nil
}

// PortName returns the device the receiver is connected to.
func (r *Receiver) PortName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.portName
}

// Start connects if needed and starts the reception goroutine. It returns
// immediately and does nothing when already running.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return nil
	}
	if err := r.connect(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	r.dataMu.Lock()
	r.startedAt = timeNow()
	r.dataMu.Unlock()

	go r.receptionLoop(ctx, r.port, r.done)
	log.Info("reception started")
	return nil
}

// Stop signals the reception goroutine, waits a bounded time for it to exit
// and closes the port. It is safe to call repeatedly or before Start.
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		r.cancel()
		select {
		case <-r.done:
		case <-time.After(stopTimeout):
			log.Warn("reception loop did not stop in time")
		}
		r.done = nil
		r.cancel = nil
	}
	if r.port != nil {
		if err := r.port.Close(); err != nil {
			log.WithField("err", err).Warn("unable to close receiver port")
		}
		r.port = nil
		log.Info("receiver disconnected")
	}
}

func (r *Receiver) receptionLoop(ctx context.Context, port Port, done chan<- struct{}) {
	defer close(done)
	f := newFramer(r.cfg.Markers)
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.dataMu.Lock()
			r.readErrs++
			r.dataMu.Unlock()
			log.WithField("err", err).Warn("unable to read from receiver port")
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		if n == 0 {
			if err := f.timeout(); err != nil {
				r.recordError(err)
			}
			continue
		}
		f.feed(buf[:n])
		for {
			payload, err := f.next()
			if err != nil {
				r.recordError(err)
				continue
			}
			if payload == nil {
				break
			}
			r.handlePayload(payload)
		}
	}
}

func (r *Receiver) handlePayload(payload []byte) {
	rec, err := Decode(payload)
	if err != nil {
		r.recordError(err)
		return
	}
	r.dataMu.Lock()
	r.latest = rec
	r.hasLatest = true
	r.received++
	r.arrivals.push(timeNow())
	r.dataMu.Unlock()
}

func (r *Receiver) recordError(err error) {
	r.dataMu.Lock()
	r.errs++
	r.dataMu.Unlock()
	log.WithField("err", err).Debug("discarded packet")
}

// Latest returns a copy of the newest decoded record and whether one has been
// received yet.
func (r *Receiver) Latest() (TelemetryRecord, bool) {
	r.dataMu.Lock()
	defer r.dataMu.Unlock()
	return r.latest, r.hasLatest
}

// LatestNamed returns the newest record as named values, empty before the
// first packet.
func (r *Receiver) LatestNamed() map[string]float64 {
	rec, ok := r.Latest()
	if !ok {
		return map[string]float64{}
	}
	return rec.Named()
}

func (r *Receiver) Statistics() RxStats {
	r.dataMu.Lock()
	defer r.dataMu.Unlock()
	return RxStats{
		PacketsReceived: r.received,
		DecodeErrors:    r.errs,
		ReadErrors:      r.readErrs,
		SuccessRate:     successRate(r.received, r.errs),
		Uptime:          timeNow().Sub(r.startedAt),
		Hz:              r.arrivals.hz(),
	}
}
