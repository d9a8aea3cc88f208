package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks outbox drain activity against the remote mirror.
type SyncMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
	online    prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_published_total",
		Help: "Outbox events delivered to the remote mirror.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_failed_total",
		Help: "Outbox delivery attempts that failed.",
	}, []string{"event_type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_publish_duration_seconds",
		Help:    "Duration of remote mirror writes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_pending_events",
		Help: "Outbox events awaiting delivery.",
	})
	oldestAge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_oldest_pending_age_seconds",
		Help: "Age of the oldest undelivered outbox event.",
	})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_remote_online",
		Help: "Whether the remote mirror is reachable (1) or not (0).",
	})
	reg.MustRegister(published, failed, duration, pending, oldestAge, online)
	return &SyncMetrics{
		published: published,
		failed:    failed,
		duration:  duration,
		pending:   pending,
		oldestAge: oldestAge,
		online:    online,
	}
}

// IncPublished increments the delivered counter for the event type.
func (m *SyncMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failed counter for the event type.
func (m *SyncMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObservePublish records how long one remote write took.
func (m *SyncMetrics) ObservePublish(eventType string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(d.Seconds())
}

// SetPending reports the current queue depth.
func (m *SyncMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

// SetOldestPendingAge reports the head-of-queue wait time.
func (m *SyncMetrics) SetOldestPendingAge(age time.Duration) {
	if m == nil || m.oldestAge == nil {
		return
	}
	m.oldestAge.Set(age.Seconds())
}

// SetOnline flags remote reachability.
func (m *SyncMetrics) SetOnline(online bool) {
	if m == nil || m.online == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
