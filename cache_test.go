package telelink

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheUpdate(t *testing.T) {
	c := NewSampleCache()
	assert.NoError(t, c.Update(map[string]float64{
		"RPM":           5200,
		"SteeringAngle": -12.5,
		"TPS":           40,
		"Lambda":        0.98,
		"EngineTemp":    85,
		"Suspension_FL": 120,
		"WheelSpeed_RR": 77,
	}))
	rec := c.Snapshot()
	assert.Equal(t, uint16(5200), rec.RPM)
	assert.Equal(t, -12.5, rec.SteeringAngle)
	assert.Equal(t, uint8(40), rec.ThrottlePos)
	assert.Equal(t, 0.98, rec.Lambda)
	assert.Equal(t, int8(85), rec.EngineTemp)
	assert.Equal(t, uint16(120), rec.SuspensionFL)
	assert.Equal(t, uint16(77), rec.WheelSpeedRR)
	assert.Equal(t, uint64(1), c.Writes())
}

func TestCacheUpdateKeepsOtherChannels(t *testing.T) {
	c := NewSampleCache()
	assert.NoError(t, c.Update(map[string]float64{"RPM": 3000, "TPS": 20}))
	assert.NoError(t, c.Update(map[string]float64{"TPS": 30}))
	rec := c.Snapshot()
	assert.Equal(t, uint16(3000), rec.RPM)
	assert.Equal(t, uint8(30), rec.ThrottlePos)
}

func TestCacheUpdateIgnoresUnknownNames(t *testing.T) {
	c := NewSampleCache()
	assert.NoError(t, c.Update(map[string]float64{
		"OilPressure": 4.2,
		"Timestamp":   99,
		"RPM":         1000,
	}))
	rec := c.Snapshot()
	assert.Equal(t, TelemetryRecord{RPM: 1000}, rec)
}

func TestCacheUpdateSaturates(t *testing.T) {
	c := NewSampleCache()
	assert.NoError(t, c.Update(map[string]float64{
		"RPM":           70000,
		"TPS":           -5,
		"EngineTemp":    200,
		"BrakePressure": 12.6,
	}))
	rec := c.Snapshot()
	assert.Equal(t, uint16(65535), rec.RPM)
	assert.Equal(t, uint8(0), rec.ThrottlePos)
	assert.Equal(t, int8(127), rec.EngineTemp)
	assert.Equal(t, uint16(13), rec.BrakePressure)

	assert.NoError(t, c.Update(map[string]float64{"EngineTemp": -300}))
	assert.Equal(t, int8(-128), c.Snapshot().EngineTemp)
}

func TestCacheSet(t *testing.T) {
	c := NewSampleCache()
	c.Set(testRecord())
	assert.Equal(t, testRecord(), c.Snapshot())
	assert.Equal(t, uint64(1), c.Writes())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewSampleCache()
	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, c.Update(map[string]float64{"RPM": float64(i*100 + j)}))
				_ = c.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint64(400), c.Writes())
}
