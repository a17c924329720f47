package telelink

import (
	"github.com/pkg/errors"
)

var ErrInvalidRates = errors.New("invalid tier rates")

// Scheduler decides on every transmit tick which priority tiers are refreshed
// from the live signals. The high tier runs at the tick rate, the medium and
// low tiers at integer sub-multiples of it.
type Scheduler struct {
	mediumInterval int
	lowInterval    int
	wrap           int
	cycle          int
}

func NewScheduler(high, medium, low int) (*Scheduler, error) {
	if high <= 0 || medium <= 0 || low <= 0 {
		return nil, errors.Wrapf(ErrInvalidRates, "rates must be positive (high=%d medium=%d low=%d)",
			high, medium, low)
	}
	if medium > high || low > high {
		return nil, errors.Wrapf(ErrInvalidRates, "medium (%d) and low (%d) must not exceed high (%d)",
			medium, low, high)
	}
	if high%medium != 0 || high%low != 0 {
		return nil, errors.Wrapf(ErrInvalidRates, "medium (%d) and low (%d) must divide high (%d) evenly",
			medium, low, high)
	}
	s := &Scheduler{
		mediumInterval: high / medium,
		lowInterval:    high / low,
	}
	// wrapping at the lcm keeps both tiers aligned for any rate combination
	s.wrap = lcm(s.mediumInterval, s.lowInterval)
	return s, nil
}

func (s *Scheduler) RefreshHigh() bool {
	return true
}

func (s *Scheduler) RefreshMedium() bool {
	return s.cycle%s.mediumInterval == 0
}

func (s *Scheduler) RefreshLow() bool {
	return s.cycle%s.lowInterval == 0
}

// Advance moves to the next tick.
func (s *Scheduler) Advance() {
	s.cycle++
	if s.cycle >= s.wrap {
		s.cycle = 0
	}
}

func (s *Scheduler) Cycle() int {
	return s.cycle
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
