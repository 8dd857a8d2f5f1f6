package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_created_total",
		Help: "Number of attendance sessions committed.",
	})
	sessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_failed_total",
		Help: "Number of attendance sessions rolled back after a write failure.",
	})
	facesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_faces_detected_total",
		Help: "Number of faces detected in attendance photos.",
	})
	facesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_faces_matched_total",
		Help: "Number of detected faces matched to an enrolled student.",
	})
)
