package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelink/internal/log"
	"github.com/teslashibe/go-facelink/pkg/capture"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording.jsonl>",
	Short: "Act as a capture client and stream a recording to a server",
	Long: `Connects to a running server's capture endpoint, waits for a start
command and streams the recorded blendshapes messages (one JSON object per
line) until the server sends stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("url", "ws://localhost:8080/ws/capture", "capture endpoint")
	replayCmd.Flags().Duration("interval", capture.DefaultReplayInterval, "frame interval when the recording has no usable timestamps")
	replayCmd.Flags().Bool("loop", false, "restart the recording when it ends")
	replayCmd.Flags().String("backend", "", "backend name reported to the server")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	rec, err := capture.ReadRecording(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return fmt.Errorf("%s: recording is empty", args[0])
	}

	url, _ := cmd.Flags().GetString("url")
	interval, _ := cmd.Flags().GetDuration("interval")
	loop, _ := cmd.Flags().GetBool("loop")
	backend, _ := cmd.Flags().GetString("backend")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []capture.ClientOption{capture.WithClientLogger(log.L())}
	if backend != "" {
		opts = append(opts, capture.WithBackend(backend))
	}
	client, err := capture.Dial(ctx, url, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("replay connected", "url", url, "frames", len(rec))
	started := time.Now()
	err = client.Replay(ctx, rec, capture.ReplayOptions{Interval: interval, Loop: loop})
	if ctx.Err() != nil {
		return nil
	}
	log.Info("replay finished", "elapsed", time.Since(started).Round(time.Millisecond))
	return err
}
