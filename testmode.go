package telelink

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunTestMode feeds ramping synthetic signals into sink at roughly the rates
// a car produces them, so the link can be exercised without a vehicle.
func RunTestMode(ctx context.Context, sink SignalSink) {
	update := func(signals map[string]float64) {
		if err := sink.Update(signals); err != nil {
			log.WithField("err", err).Warn("testmode: unable to update samples")
		}
	}

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		down := false
		rpm, steer := 1500.0, 0.0
		for {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			update(map[string]float64{
				"RPM":           rpm,
				"SteeringAngle": steer,
				"BrakePressure": (12000 - rpm) / 100,
				"AccelX":        (rpm - 6000) / 4000,
				"AccelY":        steer / 25,
				"Suspension_FL": 100 + steer,
				"Suspension_FR": 100 - steer,
				"Suspension_RL": 100 + steer/2,
				"Suspension_RR": 100 - steer/2,
			})

			if down {
				rpm -= 50
				steer -= 0.2
			} else {
				rpm += 50
				steer += 0.2
			}
			if rpm >= 12000 {
				down = true
			} else if rpm <= 1500 {
				down = false
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		tps := 0.0
		for {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			tps = float64(int(tps+5) % 105)
			speed := tps * 2.5
			update(map[string]float64{
				"TPS":           tps,
				"Lambda":        0.9 + tps/1000,
				"WheelSpeed_FL": speed,
				"WheelSpeed_FR": speed,
				"WheelSpeed_RL": speed - 1,
				"WheelSpeed_RR": speed + 1,
			})
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		temp := 20.0
		for {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			if temp < 95 {
				temp++
			}
			update(map[string]float64{
				"EngineTemp": temp,
			})
		}
	}()
}
