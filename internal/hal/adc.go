package hal

import (
	"math"
	"time"
)

// Clock is the time source behind the synthetic ADC. The engine shares it
// for telemetry timestamps so a pinned test clock drives both.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock time source.
func SystemClock() Clock { return systemClock{} }

// adcPeriod is the oscillation period of the synthetic analog signal. Slow
// enough that consecutive reads in a script see a near-steady value.
const adcPeriod = 10 * time.Second

// ADCAt computes the synthetic analog sample for a channel at an instant: a
// sinusoid over adcPeriod, phase-shifted per channel, scaled to the 12-bit
// range. Pure function of (t, channel), so tests with a pinned clock get
// reproducible reads. Result is always within [0, 4095].
func ADCAt(t time.Time, channel int) int {
	periodMS := adcPeriod.Milliseconds()
	phase := 2 * math.Pi * float64(t.UnixMilli()%periodMS) / float64(periodMS)
	phase += float64(channel) * math.Pi / 4

	unit := (math.Sin(phase) + 1) / 2
	return int(math.Round(unit * 4095))
}
