package telelink

import (
	"context"
	"io"

	"github.com/jd3nn1s/kw1281"
	"github.com/jd3nn1s/telelink/racecan"
)

// Port is the serial/radio channel. Reads return 0 bytes and no error when the
// read timeout expires without data.
type Port interface {
	io.ReadWriteCloser
}

type KW1281 interface {
	Close() error
	Start(context.Context, kw1281.Callbacks) error
}

type CANBus interface {
	Close() error
	Start(context.Context, racecan.SignalFn) error
}

// SignalSink receives named signal values from an acquisition source.
type SignalSink interface {
	Update(signals map[string]float64) error
}
