package camera

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS for a stable capture.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval.
	jitterStabilityThreshold = 0.20

	fpsWindow = 120
)

// FPSStats summarizes frame arrival times.
type FPSStats struct {
	Frames     int
	Duration   time.Duration
	FPSMean    float64
	FPSStdDev  float64
	FPSMin     float64
	FPSMax     float64
	JitterMean float64 // seconds
	JitterMax  float64 // seconds
	IsStable   bool
}

// CalculateFPSStats computes rate and jitter statistics from frame timestamps.
//
// A capture is stable when the FPS standard deviation is below 15% of the
// mean and the mean jitter is below 20% of the expected interval.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) FPSStats {
	n := len(frameTimes)
	stats := FPSStats{Frames: n, Duration: totalDuration}
	if n == 0 || totalDuration <= 0 {
		return stats
	}
	stats.FPSMean = float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds(); interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
		diff := fps - stats.FPSMean
		sumSquares += diff * diff
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(instantaneous)))

	expected := 1.0 / stats.FPSMean
	var jitterSum float64
	for i := 1; i < n; i++ {
		j := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expected)
		jitterSum += j
		stats.JitterMax = math.Max(stats.JitterMax, j)
	}
	stats.JitterMean = jitterSum / float64(n-1)

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold &&
		stats.JitterMean < expected*jitterStabilityThreshold
	return stats
}

// FPSCounter measures capture rate and logs it once per second.
type FPSCounter struct {
	name string
	now  func() time.Time

	mu         sync.Mutex
	periodFrom time.Time
	periodN    int
	current    float64
	times      []time.Time
}

// NewFPSCounter returns a counter whose log lines carry name as "source".
func NewFPSCounter(name string) *FPSCounter {
	return &FPSCounter{name: name, now: time.Now}
}

// Frame records one frame. When a full second has elapsed since the last
// report it returns the measured rate and reported=true.
func (c *FPSCounter) Frame() (fps float64, reported bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	c.times = append(c.times, t)
	if len(c.times) > fpsWindow {
		c.times = c.times[len(c.times)-fpsWindow:]
	}
	if c.periodFrom.IsZero() {
		c.periodFrom = t
		return c.current, false
	}
	c.periodN++

	elapsed := t.Sub(c.periodFrom)
	if elapsed < time.Second {
		return c.current, false
	}
	c.current = float64(c.periodN) / elapsed.Seconds()
	c.periodFrom = t
	c.periodN = 0

	slog.Debug("camera: capture rate",
		"source", c.name,
		"fps", math.Round(c.current*10)/10,
	)
	return c.current, true
}

// FPS returns the rate measured over the last completed second.
func (c *FPSCounter) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stats computes statistics over the most recent frames.
func (c *FPSCounter) Stats() FPSStats {
	c.mu.Lock()
	times := make([]time.Time, len(c.times))
	copy(times, c.times)
	c.mu.Unlock()

	if len(times) < 2 {
		return FPSStats{Frames: len(times)}
	}
	// Window covers n-1 intervals; scale so the mean matches n frames.
	d := times[len(times)-1].Sub(times[0])
	d = time.Duration(float64(d) * float64(len(times)) / float64(len(times)-1))
	return CalculateFPSStats(times, d)
}

// Reset clears all measurements.
func (c *FPSCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.periodFrom = time.Time{}
	c.periodN = 0
	c.current = 0
	c.times = nil
}
