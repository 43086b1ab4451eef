package scheduler

// speedHistory implements wget-style speed smoothing using a ring buffer
type speedHistory struct {
	samples    []speedSample
	pos        int
	size       int
	totalBytes int64
	totalTime  float64
}

type speedSample struct {
	bytes int64
	time  float64
}

const (
	speedHistorySize  = 20   // Number of samples in ring buffer (wget uses 20)
	sampleMinDuration = 0.15 // Minimum 150ms between samples (wget default)
)

func newSpeedHistory() *speedHistory {
	return &speedHistory{
		samples: make([]speedSample, speedHistorySize),
	}
}

// addSample adds a new speed sample to the ring buffer
func (sh *speedHistory) addSample(bytes int64, duration float64) {
	if duration < sampleMinDuration {
		return // Don't add samples that are too short
	}

	// Remove the oldest sample if we're at capacity
	if sh.size == speedHistorySize {
		oldSample := sh.samples[sh.pos]
		sh.totalBytes -= oldSample.bytes
		sh.totalTime -= oldSample.time
	} else {
		sh.size++
	}

	sh.samples[sh.pos] = speedSample{bytes: bytes, time: duration}
	sh.totalBytes += bytes
	sh.totalTime += duration

	sh.pos = (sh.pos + 1) % speedHistorySize
}

// calculateSpeed returns the smoothed transfer speed in bytes per second
func (sh *speedHistory) calculateSpeed(recentBytes int64, recentTime float64) float64 {
	if sh.size == 0 && recentTime <= 0 {
		return 0
	}

	totalBytes := sh.totalBytes + recentBytes
	totalTime := sh.totalTime + recentTime

	if totalTime <= 0 {
		return 0
	}

	return float64(totalBytes) / totalTime
}
