// Package metrics exposes Prometheus counters and gauges for the recording
// loops, labeled per camera.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	cycleErrors    *prometheus.CounterVec
	segmentsOpened *prometheus.CounterVec
	segmentsClosed *prometheus.CounterVec
	rotations      *prometheus.CounterVec
	samplesWritten *prometheus.CounterVec
	bytesWritten   *prometheus.CounterVec
	openSegments   *prometheus.GaugeVec
}

// New creates and registers the recorder's Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	labels := []string{"camera"}

	m := &Metrics{
		registry: registry,
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_cycle_errors_total",
			Help: "Connection cycles ended by an error",
		}, labels),
		segmentsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_segments_opened_total",
			Help: "Recording segments opened",
		}, labels),
		segmentsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_segments_closed_total",
			Help: "Recording segments closed",
		}, labels),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_rotations_total",
			Help: "Segment rotations on schedule boundaries",
		}, labels),
		samplesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_samples_written_total",
			Help: "Video samples handed to segment writers",
		}, labels),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_sample_bytes_written_total",
			Help: "Sample payload bytes handed to segment writers",
		}, labels),
		openSegments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_open_segments",
			Help: "Segments currently open for writing",
		}, labels),
	}

	registry.MustRegister(
		m.cycleErrors,
		m.segmentsOpened,
		m.segmentsClosed,
		m.rotations,
		m.samplesWritten,
		m.bytesWritten,
		m.openSegments,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Camera returns the per-camera stats recorder for the recording loop.
func (m *Metrics) Camera(shortName string) *CameraStats {
	return &CameraStats{m: m, camera: shortName}
}

// CameraStats implements the recorder's StatsRecorder for one camera.
type CameraStats struct {
	m      *Metrics
	camera string
}

// RecordCycleError counts a connection cycle ended by an error.
func (c *CameraStats) RecordCycleError() {
	c.m.cycleErrors.WithLabelValues(c.camera).Inc()
}

// RecordSegmentOpened counts a newly opened segment.
func (c *CameraStats) RecordSegmentOpened() {
	c.m.segmentsOpened.WithLabelValues(c.camera).Inc()
	c.m.openSegments.WithLabelValues(c.camera).Inc()
}

// RecordSegmentClosed counts a closed segment.
func (c *CameraStats) RecordSegmentClosed() {
	c.m.segmentsClosed.WithLabelValues(c.camera).Inc()
	c.m.openSegments.WithLabelValues(c.camera).Dec()
}

// RecordRotation counts a schedule-driven rotation.
func (c *CameraStats) RecordRotation() {
	c.m.rotations.WithLabelValues(c.camera).Inc()
}

// RecordWrite counts one sample handed to the segment writer.
func (c *CameraStats) RecordWrite(bytes int) {
	c.m.samplesWritten.WithLabelValues(c.camera).Inc()
	c.m.bytesWritten.WithLabelValues(c.camera).Add(float64(bytes))
}
