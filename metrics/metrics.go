// Package metrics defines the Prometheus instrumentation for the capture
// pipeline: frame throughput, in-flight request depth, dequeue errors, and
// request latency. Each camera gets its own Registry instance so multiple
// cameras in one process never collide registering the same metric twice.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Camera bundles the metrics for a single camera instance.
type Camera struct {
	FramesCaptured   prometheus.Counter
	RequestsInFlight prometheus.Gauge
	DequeueErrors    prometheus.Counter
	RequestDuration  prometheus.Histogram
}

// NewCamera registers and returns a Camera's metrics against reg, labeled
// with the camera's name. reg should be a fresh *prometheus.Registry
// (not prometheus.DefaultRegisterer) so re-creating a Camera in tests never
// panics on duplicate registration.
func NewCamera(reg *prometheus.Registry, name string) *Camera {
	c := &Camera{
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "camerahal",
			Name:        "frames_captured_total",
			Help:        "Frames successfully dequeued from the V4L2 device.",
			ConstLabels: prometheus.Labels{"camera": name},
		}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "camerahal",
			Name:        "requests_in_flight",
			Help:        "Capture requests accepted by process_capture_request but not yet resulted.",
			ConstLabels: prometheus.Labels{"camera": name},
		}),
		DequeueErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "camerahal",
			Name:        "dequeue_errors_total",
			Help:        "VIDIOC_DQBUF failures.",
			ConstLabels: prometheus.Labels{"camera": name},
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "camerahal",
			Name:        "request_duration_seconds",
			Help:        "Time from process_capture_request to its result callback.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"camera": name},
		}),
	}

	reg.MustRegister(c.FramesCaptured, c.RequestsInFlight, c.DequeueErrors, c.RequestDuration)
	return c
}
