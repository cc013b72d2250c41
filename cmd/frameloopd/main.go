// File: cmd/frameloopd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// frameloopd runs a frameloop echo server: every framed message is echoed
// back to its sender. Serves as both a smoke-test target and a reference
// for wiring the server facade.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/momentics/frameloop/api"
	"github.com/momentics/frameloop/control"
	"github.com/momentics/frameloop/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := server.DefaultConfig()
	var (
		metricsAddr string
		logFile     string
		readTimeout time.Duration
	)
	readTimeout = cfg.ReadTimeout

	cmd := &cobra.Command{
		Use:   "frameloopd",
		Short: "Evented length-prefixed TCP echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ReadTimeout = readTimeout
			return run(cfg, metricsAddr, logFile)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	flags.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections")
	flags.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, "per-connection read buffer bytes")
	flags.IntVar(&cfg.WriteBufferSize, "write-buffer", cfg.WriteBufferSize, "per-connection write buffer bytes")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines (0 = inline on the event loop)")
	flags.DurationVar(&readTimeout, "read-timeout", readTimeout, "idle connection eviction deadline")
	flags.BoolVar(&cfg.ReusePort, "reuse-port", false, "set SO_REUSEPORT for multi-process listeners")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus /metrics listen address (empty = disabled)")
	flags.StringVar(&logFile, "log-file", "", "log file with rotation (empty = stderr)")
	return cmd
}

func run(cfg server.Config, metricsAddr, logFile string) error {
	log, err := buildLogger(logFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	stats := control.NewStats(reg)

	echo := new(echoHandler)
	srv, err := server.New(cfg, echo,
		server.WithLogger(log),
		server.WithStats(stats),
	)
	if err != nil {
		return err
	}
	echo.srv = srv

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics endpoint", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	log.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.Int("max_conns", cfg.MaxConns),
		zap.Int("workers", cfg.Workers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		if err := srv.Shutdown(); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// echoHandler replies with the received payload.
type echoHandler struct {
	srv *server.Server
}

func (h *echoHandler) OnMessage(connID int64, payload []byte) error {
	if err := h.srv.Send(connID, payload); err != nil {
		if err == api.ErrPendingMessage {
			// Client sent faster than it reads; drop the reply rather
			// than the connection.
			return nil
		}
		return err
	}
	return nil
}

func buildLogger(logFile string) (*zap.Logger, error) {
	if logFile == "" {
		return zap.NewProduction()
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    128, // MiB
		MaxBackups: 4,
		MaxAge:     14, // days
	})
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, sink, zapcore.InfoLevel)
	return zap.New(core), nil
}
