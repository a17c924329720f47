package telelink

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// drain calls next until it asks for more bytes.
func drain(f framer) (payloads [][]byte, errs []error) {
	for {
		payload, err := f.next()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if payload == nil {
			return payloads, errs
		}
		payloads = append(payloads, payload)
	}
}

func TestMarkerFramer(t *testing.T) {
	packet := Encode(testRecord())
	f := newFramer(true)

	f.feed(Frame(packet))
	payloads, errs := drain(f)
	assert.Empty(t, errs)
	assert.Equal(t, [][]byte{packet}, payloads)
}

func TestMarkerFramerSkipsGarbage(t *testing.T) {
	packet := Encode(testRecord())
	f := newFramer(true)

	f.feed([]byte{0x01, 0x02, 0x55, 0xAA})
	f.feed(Frame(packet))
	f.feed([]byte{0x03})
	payloads, errs := drain(f)
	assert.Empty(t, errs)
	assert.Equal(t, [][]byte{packet}, payloads)
}

func TestMarkerFramerSplitReads(t *testing.T) {
	packet := Encode(testRecord())
	frame := Frame(packet)
	f := newFramer(true)

	// split inside the start marker
	f.feed([]byte{0x10, 0x20, frame[0]})
	payloads, errs := drain(f)
	assert.Empty(t, payloads)
	assert.Empty(t, errs)

	f.feed(frame[1:20])
	payloads, _ = drain(f)
	assert.Empty(t, payloads)

	f.feed(frame[20:])
	payloads, errs = drain(f)
	assert.Empty(t, errs)
	assert.Equal(t, [][]byte{packet}, payloads)
}

func TestMarkerFramerRecovers(t *testing.T) {
	good := Encode(testRecord())
	corrupt := Frame(Encode(TelemetryRecord{RPM: 1}))
	corrupt[FrameSize-2] = 0
	corrupt[FrameSize-1] = 0

	f := newFramer(true)
	f.feed(corrupt)
	f.feed(Frame(good))
	payloads, errs := drain(f)
	assert.Equal(t, [][]byte{good}, payloads)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, ErrEndMarker, errors.Cause(errs[0]))
	}
}

func TestMarkerFramerFindsStartInsideRejectedFrame(t *testing.T) {
	good := Frame(Encode(testRecord()))
	// a truncated frame immediately followed by a good one
	stream := append(append([]byte{}, StartMarker[:]...), 0x01, 0x02, 0x03)
	stream = append(stream, good...)

	f := newFramer(true)
	f.feed(stream)
	payloads, errs := drain(f)
	assert.Equal(t, [][]byte{good[2 : FrameSize-2]}, payloads)
	assert.Len(t, errs, 1)
}

func TestMarkerFramerTimeout(t *testing.T) {
	frame := Frame(Encode(testRecord()))
	f := newFramer(true)

	// nothing pending
	assert.NoError(t, f.timeout())

	f.feed(frame[:10])
	payloads, _ := drain(f)
	assert.Empty(t, payloads)
	assert.Equal(t, ErrFrameTimeout, f.timeout())

	// the rest of the stale frame never yields a payload
	f.feed(frame[10:])
	payloads, _ = drain(f)
	assert.Empty(t, payloads)

	f.feed(frame)
	payloads, _ = drain(f)
	assert.Len(t, payloads, 1)
}

func TestFixedFramer(t *testing.T) {
	packet := Encode(testRecord())
	f := newFramer(false)

	f.feed(append(append([]byte{}, packet...), packet[:10]...))
	payloads, errs := drain(f)
	assert.Empty(t, errs)
	assert.Equal(t, [][]byte{packet}, payloads)

	// the short read is dropped at timeout without counting as an error
	assert.NoError(t, f.timeout())
	f.feed(packet)
	payloads, _ = drain(f)
	assert.Equal(t, [][]byte{packet}, payloads)
}
