package telelink

import (
	"time"
)

// rateWindow is how many arrival times the receiver keeps to estimate its rate.
const rateWindow = 50

// to allow testing
var timeNow = time.Now

// RxStats is a point in time copy of the receiver counters.
type RxStats struct {
	PacketsReceived uint64
	// framing and decode failures
	DecodeErrors    uint64
	ReadErrors      uint64
	// percent, 100 when nothing has been seen yet
	SuccessRate     float64
	Uptime          time.Duration
	// effective reception rate over the last rateWindow packets
	Hz              float64
}

// TxStats is a point in time copy of the transmitter counters.
type TxStats struct {
	PacketsSent   uint64
	BytesSent     uint64
	WriteErrors   uint64
	Uptime        time.Duration
	PacketsPerSec float64
	BytesPerSec   float64
	Kbps          float64
}

// arrivalRing is a fixed size ring of packet arrival times.
type arrivalRing struct {
	times [rateWindow]time.Time
	next  int
	count int
}

func (r *arrivalRing) push(t time.Time) {
	r.times[r.next] = t
	r.next = (r.next + 1) % rateWindow
	if r.count < rateWindow {
		r.count++
	}
}

// hz returns (count-1)/(newest-oldest), or 0 with fewer than two samples.
func (r *arrivalRing) hz() float64 {
	if r.count < 2 {
		return 0
	}
	newest := r.times[(r.next+rateWindow-1)%rateWindow]
	oldest := r.times[(r.next+rateWindow-r.count)%rateWindow]
	dt := newest.Sub(oldest).Seconds()
	if dt <= 0 {
		return 0
	}
	return float64(r.count-1) / dt
}

func successRate(received, errs uint64) float64 {
	total := received + errs
	if total == 0 {
		return 100
	}
	return float64(received) / float64(total) * 100
}

func txStats(packets, bytes, writeErrs uint64, uptime time.Duration) TxStats {
	s := TxStats{
		PacketsSent: packets,
		BytesSent:   bytes,
		WriteErrors: writeErrs,
		Uptime:      uptime,
	}
	if secs := uptime.Seconds(); secs > 0 {
		s.PacketsPerSec = float64(packets) / secs
		s.BytesPerSec = float64(bytes) / secs
		s.Kbps = s.BytesPerSec * 8 / 1000
	}
	return s
}
