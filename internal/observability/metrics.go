package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_detected_total",
		Help:      "Total number of face regions processed",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched to an enrolled identity",
	})

	AttendanceRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "attendance_recorded_total",
		Help:      "Total number of new attendance records written",
	})

	StrangersDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "strangers_detected_total",
		Help:      "Total number of stranger alerts (after cooldown throttling)",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "stage_duration_seconds",
		Help:      "Duration of recognition pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
