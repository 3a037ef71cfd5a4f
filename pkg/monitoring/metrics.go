package monitoring

import "github.com/prometheus/client_golang/prometheus"

const namespace = "glvplay"

// Metrics are the playback counters.
type Metrics struct {
	FramesDrawn      prometheus.Counter
	FramesSkipped    prometheus.Counter
	SurfaceResizes   *prometheus.CounterVec
	AudioSamples     prometheus.Counter
	AudioWriteErrors prometheus.Counter
	SurfacesActive   prometheus.Gauge
}

// NewMetrics makes the counters and registers them in r, if not nil.
func NewMetrics(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_drawn_total",
			Help: "Video frames uploaded and drawn on all surfaces.",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_skipped_total",
			Help: "Empty frames ignored by the renderer.",
		}),
		SurfaceResizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "surface_resizes_total",
			Help: "Quad recalculations caused by window size changes.",
		}, []string{"surface"}),
		AudioSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_samples_total",
			Help: "Samples written to the audio device.",
		}),
		AudioWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_write_errors_total",
			Help: "Failed audio device writes.",
		}),
		SurfacesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "surfaces_active",
			Help: "Open display surfaces.",
		}),
	}
	if r != nil {
		r.MustRegister(m.FramesDrawn, m.FramesSkipped, m.SurfaceResizes,
			m.AudioSamples, m.AudioWriteErrors, m.SurfacesActive)
	}
	return m
}
