package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glvplay/glvplay/pkg/audio"
	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/decoder"
	"github.com/glvplay/glvplay/pkg/display"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/glvplay/glvplay/pkg/monitoring"
	"github.com/glvplay/glvplay/pkg/service"
	"github.com/glvplay/glvplay/pkg/snapshot"
	"github.com/glvplay/glvplay/pkg/thread"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func run() {
	conf, path, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	log := logger.NewConsole(conf.Log.Debug, conf.Log.Tag, conf.Log.NoColor)
	if err = conf.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	log.Info().Msgf("version %s", Version)
	if path != "" {
		log.Info().Msgf("config: %v", path)
	}
	log.Debug().Msgf("conf: %+v", conf)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	var services service.Group
	if conf.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Monitoring, registry, log))
	}
	services.Start()
	defer func() {
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := services.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if path != "" {
		// only the log level can change on the fly
		if err = config.Watch(ctx, path, log, func(c *config.Config) { logger.SetDebug(c.Log.Debug) }); err != nil {
			log.Warn().Err(err).Msg("config watch")
		}
	}

	if err = play(ctx, conf, metrics, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("playback")
	}
}

func play(ctx context.Context, conf *config.Config, metrics *monitoring.Metrics, log *logger.Logger) error {
	dec, err := decoder.Open(conf.Player, log.Module("decoder"))
	if err != nil {
		return err
	}
	defer func() { _ = dec.Close() }()

	shots, err := snapshot.New(conf.Player.Snapshot, log)
	if err != nil {
		log.Warn().Err(err).Msg("snapshots are disabled")
	}

	var renderer *display.Renderer
	if err = thread.CallErr(func() (err error) {
		renderer, err = display.New(dec, conf.Player.GetRegions(), display.Options{
			Window:    conf.Player.Window,
			SeekStep:  conf.Player.SeekStep,
			Metrics:   metrics,
			Snapshots: shots,
			Log:       log,
		})
		return
	}); err != nil {
		return err
	}
	defer thread.Call(func() { _ = renderer.Close() })

	if a := conf.Player.Audio; a.Enabled {
		spec := audio.Spec{Frequency: a.Frequency, Channels: a.Channels, Samples: a.Samples}
		var sink *audio.Sink
		if err = thread.CallErr(func() (err error) {
			sink, err = audio.New(spec, metrics, log)
			return
		}); err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			playAudio(ctx, dec, sink, spec.Samples, log)
		}()
		defer func() {
			dec.Stop()
			<-done
			_ = sink.Close()
		}()
	}

	return thread.CallErr(func() error { return renderer.Run(ctx) })
}

// playAudio feeds the sink until the stream ends, the sink paces the loop.
func playAudio(ctx context.Context, dec *decoder.Raw, sink *audio.Sink, n int, log *logger.Logger) {
	for ctx.Err() == nil {
		samples, err := dec.AudioSamples(n)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("audio read")
			}
			return
		}
		if err = sink.Play(samples); err != nil {
			log.Error().Err(err).Msg("audio")
			return
		}
	}
}

func main() { thread.Wrap(run) }
