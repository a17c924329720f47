package telelink

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	ErrEndMarker    = errors.New("end marker mismatch")
	ErrFrameTimeout = errors.New("incomplete frame at read timeout")
)

// framer recovers payload boundaries from the byte stream read off the link.
type framer interface {
	// feed appends bytes read from the link.
	feed(p []byte)
	// next returns the next complete payload, or nil when more bytes are
	// needed. A non-nil error reports a discarded candidate; the caller should
	// call next again.
	next() ([]byte, error)
	// timeout is called when a read returned no bytes.
	timeout() error
}

func newFramer(markers bool) framer {
	if markers {
		return &markerFramer{}
	}
	return &fixedFramer{}
}

// fixedFramer takes every PacketSize bytes as one payload. A partial packet
// left over at a read timeout is dropped, it is not an error.
type fixedFramer struct {
	buf []byte
}

func (f *fixedFramer) feed(p []byte) {
	f.buf = append(f.buf, p...)
}

func (f *fixedFramer) next() ([]byte, error) {
	if len(f.buf) < PacketSize {
		return nil, nil
	}
	payload := make([]byte, PacketSize)
	copy(payload, f.buf)
	f.buf = f.buf[PacketSize:]
	return payload, nil
}

func (f *fixedFramer) timeout() error {
	f.buf = f.buf[:0]
	return nil
}

// markerFramer scans for the start marker, takes PacketSize bytes and checks
// the end marker. On a mismatch it resumes one byte after the rejected start
// marker, so a start marker inside a corrupted frame is still found.
type markerFramer struct {
	buf []byte
}

func (f *markerFramer) feed(p []byte) {
	f.buf = append(f.buf, p...)
}

func (f *markerFramer) next() ([]byte, error) {
	i := bytes.Index(f.buf, StartMarker[:])
	if i < 0 {
		// the last byte may be the first half of a marker
		if n := len(f.buf); n > 0 && f.buf[n-1] == StartMarker[0] {
			f.buf = append(f.buf[:0], StartMarker[0])
		} else {
			f.buf = f.buf[:0]
		}
		return nil, nil
	}
	f.buf = f.buf[i:]
	if len(f.buf) < FrameSize {
		return nil, nil
	}
	if f.buf[FrameSize-2] != EndMarker[0] || f.buf[FrameSize-1] != EndMarker[1] {
		f.buf = f.buf[1:]
		return nil, errors.Wrapf(ErrEndMarker, "got %x", f.buf[FrameSize-3:FrameSize-1])
	}
	payload := make([]byte, PacketSize)
	copy(payload, f.buf[len(StartMarker):])
	f.buf = f.buf[FrameSize:]
	return payload, nil
}

func (f *markerFramer) timeout() error {
	if len(f.buf) < len(StartMarker) || !bytes.HasPrefix(f.buf, StartMarker[:]) {
		return nil
	}
	f.buf = f.buf[1:]
	return ErrFrameTimeout
}
