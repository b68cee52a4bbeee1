package session

import (
	"time"

	"go.uber.org/zap"
)

// RoundMetrics times each named phase of a round, the Go equivalent of the
// original's "Finished in %g seconds" log line (shuffle_node.py,
// bulk_node.py) generalized to per-phase rather than whole-round timing.
type RoundMetrics struct {
	started map[string]time.Time
	elapsed map[string]time.Duration
	log     *zap.Logger
}

// NewRoundMetrics returns an empty metrics recorder.
func NewRoundMetrics(log *zap.Logger) *RoundMetrics {
	return &RoundMetrics{
		started: make(map[string]time.Time),
		elapsed: make(map[string]time.Duration),
		log:     log,
	}
}

// Start marks the beginning of a named phase.
func (m *RoundMetrics) Start(phase string) {
	m.started[phase] = time.Now()
}

// Stop records the elapsed time since Start(phase) and logs it.
func (m *RoundMetrics) Stop(phase string) {
	start, ok := m.started[phase]
	if !ok {
		return
	}
	d := time.Since(start)
	m.elapsed[phase] = d
	m.log.Info("phase finished", zap.String("phase", phase), zap.Duration("elapsed", d))
}

// Elapsed returns how long a completed phase took.
func (m *RoundMetrics) Elapsed(phase string) time.Duration {
	return m.elapsed[phase]
}

// Total sums every recorded phase's duration.
func (m *RoundMetrics) Total() time.Duration {
	var total time.Duration
	for _, d := range m.elapsed {
		total += d
	}
	return total
}
