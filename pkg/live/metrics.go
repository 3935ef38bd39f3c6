package live

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for weft_live_events_total.
const (
	eventHandled     = "handled"
	eventNoHandler   = "no_handler"
	eventPanicked    = "panic"
	eventRateLimited = "rate_limited"
	eventBadPayload  = "bad_payload"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weft_live_sessions_active",
		Help: "Sessions currently held in memory, attached or detached.",
	})

	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_live_sessions_created_total",
		Help: "Total sessions created.",
	})

	metricSessionsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_live_sessions_resumed_total",
		Help: "Reconnects that reattached a live session or restored one from a snapshot.",
	})

	metricSessionsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_live_sessions_evicted_total",
		Help: "Sessions removed from memory, by reason.",
	}, []string{"reason"})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_live_events_total",
		Help: "Client events received, by handling result.",
	}, []string{"result"})

	metricPatchesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_live_patches_total",
		Help: "Individual DOM patch operations sent to clients.",
	})

	metricSentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_live_sent_bytes_total",
		Help: "Bytes written to clients over WebSocket.",
	})

	metricEventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weft_live_event_duration_seconds",
		Help:    "Wall time from event receipt to patches written.",
		Buckets: prometheus.DefBuckets,
	})

	metricFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weft_live_flush_duration_seconds",
		Help:    "Time spent flushing queued effects per tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

func recordEvent(result string) { metricEvents.WithLabelValues(result).Inc() }

func recordEviction(reason string) { metricSessionsEvicted.WithLabelValues(reason).Inc() }

func recordPatches(count int) { metricPatchesSent.Add(float64(count)) }

func recordSentBytes(n int) { metricSentBytes.Add(float64(n)) }

func observeEvent(d time.Duration) { metricEventDuration.Observe(d.Seconds()) }

func observeFlush(d time.Duration) { metricFlushDuration.Observe(d.Seconds()) }

func setActiveSessions(n int) { metricSessionsActive.Set(float64(n)) }
