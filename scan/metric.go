package scan

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for one scan session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// ExchangeCount indicates the number of command exchanges attempted.
	ExchangeCount atomic.Uint64
	// ReplyCount indicates the number of non-empty replies received.
	ReplyCount atomic.Uint64
	// ReplyByteCount indicates the total reply bytes received.
	ReplyByteCount atomic.Uint64

	// StepSendCount indicates the number of MOVE exchanges attempted.
	StepSendCount atomic.Uint64
	// StepErrCount indicates the number of failed MOVE exchanges.
	StepErrCount atomic.Uint64

	// CleanupErrCount indicates the number of failed DONE exchanges.
	CleanupErrCount atomic.Uint64
}

func (m *SessionMetrics) incExchangeCount() {
	m.ExchangeCount.Add(1)
}

func (m *SessionMetrics) addReply(n int) {
	m.ReplyCount.Add(1)
	m.ReplyByteCount.Add(uint64(n)) //nolint:gosec
}

func (m *SessionMetrics) incStepSendCount() {
	m.StepSendCount.Add(1)
}

func (m *SessionMetrics) incStepErrCount() {
	m.StepErrCount.Add(1)
}

func (m *SessionMetrics) incCleanupErrCount() {
	m.CleanupErrCount.Add(1)
}
