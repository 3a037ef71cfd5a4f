package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf     config.Monitoring
	server   *http.Server
	registry *prometheus.Registry
	log      *logger.Logger
}

// New creates new monitoring service.
// Metrics come from the given registry, nil means the default one.
func New(conf config.Monitoring, registry *prometheus.Registry, log *logger.Logger) *Monitoring {
	m := &Monitoring{conf: conf, registry: registry, log: log.Module("monitoring")}
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.server.Handler = m.handler()
	return m
}

func (m *Monitoring) handler() http.Handler {
	h := http.NewServeMux()

	if m.conf.ProfilingEnabled {
		prefix := m.conf.URLPrefix + "/debug/pprof"
		m.log.Info().Msgf("Profiling is enabled at %v", m.server.Addr+prefix)
		h.HandleFunc(prefix+"/", pprof.Index)
		h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
		h.HandleFunc(prefix+"/profile", pprof.Profile)
		h.HandleFunc(prefix+"/symbol", pprof.Symbol)
		h.HandleFunc(prefix+"/trace", pprof.Trace)
		// custom prefixes need the named profiles registered explicitly
		for _, p := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(prefix+"/"+p, pprof.Handler(p))
		}
	}

	if m.conf.MetricEnabled {
		path := m.conf.URLPrefix + "/metrics"
		m.log.Info().Msgf("Prometheus metric is enabled at %v", m.server.Addr+path)
		if m.registry != nil {
			h.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
		} else {
			h.Handle(path, promhttp.Handler())
		}
	}
	return h
}

func (m *Monitoring) Run() {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		m.log.Error().Err(err).Msg("monitoring server")
		return
	}
	m.log.Info().Msgf("Starting monitoring server at %v", ln.Addr())
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("monitoring server")
		}
	}()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
