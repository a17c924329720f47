package telelink

import (
	"context"

	"github.com/jd3nn1s/telelink/racecan"
	log "github.com/sirupsen/logrus"
)

// canBusSource feeds decoded CAN frames into the sample cache.
type canBusSource struct {
	c     CANBus
	iface string
	sink  SignalSink
}

func (bus *canBusSource) Open() error {
	c, err := canBusConnect(bus.iface)
	bus.c = c
	return err
}

func (bus *canBusSource) Close() error {
	if bus.c == nil {
		return nil
	}
	return bus.c.Close()
}

func (bus *canBusSource) Start(ctx context.Context) error {
	return bus.c.Start(ctx, func(signals map[string]float64) {
		if err := bus.sink.Update(signals); err != nil {
			log.WithField("err", err).Warn("canbus: unable to update samples")
		}
	})
}

func (bus *canBusSource) Name() string {
	return "canbus"
}

// to allow testing
var canBusConnect = func(iface string) (CANBus, error) {
	return racecan.Connect(iface)
}

// RunCAN acquires signals from the CAN interface until ctx is done,
// reconnecting after failures.
func RunCAN(ctx context.Context, iface string, sink SignalSink) {
	err := supervise(ctx, &canBusSource{
		iface: iface,
		sink:  sink,
	})
	if err != nil {
		log.Errorf("canbus done: %v", err)
	}
}
