package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelink/internal/config"
	"github.com/teslashibe/go-facelink/internal/log"
	"github.com/teslashibe/go-facelink/pkg/capture"
	"github.com/teslashibe/go-facelink/pkg/tracking"
	"github.com/teslashibe/go-facelink/pkg/web"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker, capture endpoint and dashboard server",
	Long: `Starts the HTTP server. Capture clients connect to /ws/capture,
dashboards to /ws/frames and /ws/state. Configuration comes from FACELINK_*
environment variables; flags override them.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides FACELINK_ADDR)")
	serveCmd.Flags().String("tuning", "", "tracker tuning yaml (overrides FACELINK_TUNING)")
	serveCmd.Flags().Bool("autostart", false, "start a session once a capture client connects")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if path, _ := cmd.Flags().GetString("tuning"); path != "" {
		cfg.TuningPath = path
	}
	autostart, _ := cmd.Flags().GetBool("autostart")

	log.Init(cfg.LogLevel)
	trackerCfg, err := cfg.Tracker()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := tracking.NewMetrics(reg)
	if err != nil {
		return err
	}

	captureHub := capture.NewHub(
		capture.WithHubLogger(log.With("component", "capture")),
		capture.WithStartTimeout(cfg.CaptureTimeout),
	)
	tracker, err := tracking.New(trackerCfg, captureHub,
		tracking.WithLogger(log.With("component", "tracker")),
		tracking.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	defer tracker.Release()

	srv := web.NewServer(cfg.Addr, tracker,
		web.WithCaptureHub(captureHub),
		web.WithGatherer(reg),
		web.WithLogger(log.With("component", "web")),
		web.WithRequestLog(cfg.Debug),
	)

	log.Info("facelink starting",
		"version", version,
		"addr", cfg.Addr,
		"smoothing", trackerCfg.Smoothing.Mode.String(),
		"enhancer", trackerCfg.Enhancer.Enabled,
		"calibration", trackerCfg.EnableCalibration,
		"camera_facing", trackerCfg.CameraFacing.String(),
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if autostart {
		go autoStart(ctx, tracker, cfg.CaptureTimeout)
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
	return nil
}

// autoStart retries Start until a capture client accepts a session.
func autoStart(ctx context.Context, tracker *tracking.Tracker, retry time.Duration) {
	for {
		err := tracker.Start(ctx)
		if err == nil {
			return
		}
		// A released tracker or an explicit stop ends the retries.
		if errors.Is(err, tracking.ErrIllegalState) || errors.Is(err, tracking.ErrStartInterrupted) {
			return
		}
		log.Debug("autostart waiting for capture client", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
