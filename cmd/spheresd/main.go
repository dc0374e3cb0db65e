// spheresd hosts an authoritative spheres environment and exposes it to
// remote peers over a WebSocket relay. Remote clients dial /ws and speak
// the wsbus frame protocol; every topic they publish on is spliced into the
// in-process graph the bridge server is spun on.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	spheresenv "github.com/ricmua/ros-spheres-environment"
	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/bus/wsbus"
	"github.com/ricmua/ros-spheres-environment/env"
	"github.com/ricmua/ros-spheres-environment/logging"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "spheresd").Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("parse log level")
	}
	logger = logger.Level(level)

	var overrides spheresenv.TopicOverrides
	if cfg.TopicConfigPath != "" {
		overrides, err = loadTopicOverrides(cfg.TopicConfigPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.TopicConfigPath).Msg("load topic overrides")
		}
		logger.Info().Int("topics", len(overrides)).Msg("topic overrides loaded")
	}

	router := logging.NewRouter(
		logging.Config{MinimumSeverity: routerSeverity(level)},
		logging.NewZerologSink(logger),
	)

	graph := bus.NewGraph()
	node := graph.Node("spheresd")
	environment := env.New()

	server, err := spheresenv.NewServer(node, environment,
		spheresenv.WithServerTopicOverrides(overrides),
		spheresenv.WithServerLogger(router),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("bind bridge server")
	}

	relay := wsbus.NewRelay(graph, wsbus.RelayConfig{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.Handle)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cfg.SpinInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				node.SpinAll()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := server.Close(); err != nil {
		logger.Error().Err(err).Msg("bridge teardown")
	}
	if err := router.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("logging teardown")
	}
}

func routerSeverity(level zerolog.Level) logging.Severity {
	switch {
	case level <= zerolog.DebugLevel:
		return logging.SeverityDebug
	case level == zerolog.InfoLevel:
		return logging.SeverityInfo
	case level == zerolog.WarnLevel:
		return logging.SeverityWarn
	default:
		return logging.SeverityError
	}
}
