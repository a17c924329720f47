package telelink

import (
	"math"
	"reflect"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// SampleCache holds the latest known value of every channel. Signal sources
// write to it continuously, the transmitter copies it out once per tick.
type SampleCache struct {
	mu     sync.Mutex
	rec    TelemetryRecord
	writes uint64
}

func NewSampleCache() *SampleCache {
	return &SampleCache{}
}

// Update merges named signal values into the cache. Names that do not match
// a channel are ignored, channels absent from signals keep their value.
func (c *SampleCache) Update(signals map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.rec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: saturatingHook,
		Result:     &next,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create signal decoder")
	}
	if err := decoder.Decode(signals); err != nil {
		return errors.Wrap(err, "unable to decode signals")
	}
	c.rec = next
	c.writes++
	return nil
}

// Set replaces the whole cached record.
func (c *SampleCache) Set(rec TelemetryRecord) {
	c.mu.Lock()
	c.rec = rec
	c.writes++
	c.mu.Unlock()
}

// Snapshot returns a copy of the cached record.
func (c *SampleCache) Snapshot() TelemetryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// Writes returns how many updates the cache has accepted.
func (c *SampleCache) Writes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// saturatingHook converts float signal values into the integer width of the
// target channel, rounding and clamping instead of wrapping.
func saturatingHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	v := reflect.ValueOf(data).Float()
	switch to.Kind() {
	case reflect.Uint8:
		return uint8(saturate(v, 0, math.MaxUint8)), nil
	case reflect.Uint16:
		return uint16(saturate(v, 0, math.MaxUint16)), nil
	case reflect.Uint32:
		return uint32(saturate(v, 0, math.MaxUint32)), nil
	case reflect.Int8:
		return int8(saturate(v, math.MinInt8, math.MaxInt8)), nil
	case reflect.Int16:
		return int16(saturate(v, math.MinInt16, math.MaxInt16)), nil
	}
	return data, nil
}
