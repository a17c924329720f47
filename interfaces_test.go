package telelink

import (
	"context"
	"sync"
	"time"

	"github.com/jd3nn1s/kw1281"
	"github.com/jd3nn1s/telelink/racecan"
)

type sensorStub struct {
	startChan chan struct{}
	errChan   chan error
	fnChan    chan func()
}

type kw1281Stub struct {
	sensorStub
	callbacks kw1281.Callbacks
}

type canBusStub struct {
	sensorStub
	fn racecan.SignalFn
}

func createSensorStub() *sensorStub {
	ret := sensorStub{
		startChan: make(chan struct{}),
		errChan:   make(chan error),
		fnChan:    make(chan func()),
	}
	return &ret
}

func (s *sensorStub) Close() error {
	return nil
}

func (s *sensorStub) start(ctx context.Context) error {
	select {
	case s.startChan <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errChan:
			return err
		case fn := <-s.fnChan:
			fn()
		}
	}
}

func createECUStub() *kw1281Stub {
	return &kw1281Stub{
		sensorStub: *createSensorStub(),
	}
}

func (k *kw1281Stub) Start(ctx context.Context, callbacks kw1281.Callbacks) error {
	k.callbacks = callbacks
	return k.sensorStub.start(ctx)
}

func createCANBusStub() *canBusStub {
	return &canBusStub{
		sensorStub: *createSensorStub(),
	}
}

func (c *canBusStub) Start(ctx context.Context, fn racecan.SignalFn) error {
	c.fn = fn
	return c.sensorStub.start(ctx)
}

// sinkStub passes every update on to a channel.
type sinkStub struct {
	updates chan map[string]float64
}

func newSinkStub() *sinkStub {
	return &sinkStub{
		updates: make(chan map[string]float64, 16),
	}
}

func (s *sinkStub) Update(signals map[string]float64) error {
	s.updates <- signals
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// portStub emulates a serial port with a short read timeout. Reads return
// queued chunks, or 0 bytes when nothing is queued in time.
type portStub struct {
	reads    chan readResult
	mu       sync.Mutex
	closed   int
	writes   [][]byte
	// error returned from Write
	writeErr error
}

func newPortStub() *portStub {
	return &portStub{
		reads: make(chan readResult, 64),
	}
}

func (p *portStub) Read(b []byte) (int, error) {
	select {
	case r := <-p.reads:
		return copy(b, r.data), r.err
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (p *portStub) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte{}, b...))
	return len(b), nil
}

func (p *portStub) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

func (p *portStub) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *portStub) written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte{}, p.writes...)
}

func (p *portStub) queue(data []byte) {
	p.reads <- readResult{data: data}
}

type forwarderStub struct {
	rec   *TelemetryRecord
	stats RxStats
	calls int
}

func (fwd *forwarderStub) Forward(rec *TelemetryRecord, stats RxStats) error {
	fwd.rec = rec
	fwd.stats = stats
	fwd.calls++
	return nil
}
