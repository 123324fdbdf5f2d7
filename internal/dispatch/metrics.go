package dispatch

import (
	"sync/atomic"
	"time"
)

type ServiceMetrics struct {
	totalSent       int64
	totalNotSent    int64
	totalDurationNs int64
	activations     int64
	completions     int64
	lastResetNs     int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		lastResetNs: time.Now().UnixNano(),
	}
}

func (m *ServiceMetrics) RecordSent(duration time.Duration) {
	atomic.AddInt64(&m.totalSent, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordNotSent(duration time.Duration) {
	atomic.AddInt64(&m.totalNotSent, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordActivation() {
	atomic.AddInt64(&m.activations, 1)
}

func (m *ServiceMetrics) RecordCompletion() {
	atomic.AddInt64(&m.completions, 1)
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	sent := atomic.LoadInt64(&m.totalSent)
	notSent := atomic.LoadInt64(&m.totalNotSent)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	lastResetNs := atomic.LoadInt64(&m.lastResetNs)

	elapsed := time.Since(time.Unix(0, lastResetNs)).Seconds()

	avgDuration := time.Duration(0)
	if attempts := sent + notSent; attempts > 0 {
		avgDuration = time.Duration(durationNs / attempts)
	}

	return map[string]interface{}{
		"total_sent":     sent,
		"total_not_sent": notSent,
		"activations":    atomic.LoadInt64(&m.activations),
		"completions":    atomic.LoadInt64(&m.completions),
		"avg_send_ms":    avgDuration.Milliseconds(),
		"window_seconds": elapsed,
	}
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.totalSent, 0)
	atomic.StoreInt64(&m.totalNotSent, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.activations, 0)
	atomic.StoreInt64(&m.completions, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
