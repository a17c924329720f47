package telelink

import (
	"context"

	"github.com/jd3nn1s/kw1281"
	log "github.com/sirupsen/logrus"
)

// ecuSource reads measurement groups over the ECU diagnostic line and feeds
// the engine channels into the sample cache.
type ecuSource struct {
	c    KW1281
	port string
	sink SignalSink
}

// to allow testing
var ecuConnect = func(p string) (KW1281, error) {
	return kw1281.Connect(p)
}

func (e *ecuSource) Name() string {
	return "ecu"
}

func (e *ecuSource) Open() error {
	c, err := ecuConnect(e.port)
	e.c = c
	return err
}

func (e *ecuSource) Close() error {
	if e.c == nil {
		return nil
	}
	return e.c.Close()
}

func (e *ecuSource) Start(ctx context.Context) error {
	return e.c.Start(ctx, kw1281.Callbacks{
		ECUDetails: func(details *kw1281.ECUDetails) {
			log.WithField("partNumber", details.PartNumber).Info()
			for _, line := range details.Details {
				log.Infof("ECU: %s", line)
			}
		},
		Measurement: e.measurementFn,
	})
}

func (e *ecuSource) measurementFn(group kw1281.MeasurementGroup, measurements []*kw1281.Measurement) {
	signals := map[string]float64{}
	for _, m := range measurements {
		if m == nil || m.MeasurementValue == nil {
			continue
		}
		switch m.Metric {
		case kw1281.MetricRPM:
			signals["RPM"] = castToFloat64(m.Value)
		case kw1281.MetricCoolantTemp:
			signals["EngineTemp"] = castToFloat64(m.Value)
		case kw1281.MetricThrottleAngle:
			signals["TPS"] = castToFloat64(m.Value)
		}
	}
	if len(signals) == 0 {
		return
	}
	if err := e.sink.Update(signals); err != nil {
		log.WithField("err", err).Warn("ecu: unable to update samples")
	}
}

func castToFloat64(val interface{}) float64 {
	switch v := val.(type) {
	case int:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// RunECU acquires engine channels from the ECU until ctx is done,
// reconnecting after failures.
func RunECU(ctx context.Context, port string, sink SignalSink) {
	err := supervise(ctx, &ecuSource{
		port: port,
		sink: sink,
	})
	if err != nil {
		log.Errorf("ecu done: %v", err)
	}
}
