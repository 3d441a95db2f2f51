package engine

import (
	"sync"

	"motion/internal/pkg/logger"
)

// ThrottledProgress returns a ProgressFunc that logs at most once per step
// (e.g. 0.1 for 10% granularity). Engines emit progress on every tick;
// logging each one would drown the log stream.
func ThrottledProgress(log *logger.Logger, phase string, step float64) ProgressFunc {
	if step <= 0 {
		step = 0.1
	}

	var mu sync.Mutex
	next := step
	done := false

	return func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		mu.Lock()
		defer mu.Unlock()

		if done {
			return
		}
		if fraction < next && fraction < 1 {
			return
		}
		if fraction >= 1 {
			done = true
		}
		for next <= fraction {
			next += step
		}

		log.Info("render progress",
			"phase", phase,
			"percent", int(fraction*100),
		)
	}
}
