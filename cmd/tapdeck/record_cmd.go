// ABOUTME: The record command, driving a paired capture until stop
// ABOUTME: Runs until SIGINT, a --duration elapses, or a stream ends
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/config"
	"github.com/tapdeck-io/tapdeck/internal/duplex"
	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/internal/record"
	"github.com/tapdeck-io/tapdeck/internal/ui"
)

var (
	recordDuration time.Duration
	recordOutDir   string
	recordNoMerge  bool
	recordRate     float64
	recordDryRun   bool
	recordNoTUI    bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record system audio and microphone to WAV files",
	Run: func(cmd *cobra.Command, args []string) {
		runRecord()
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop automatically after this long (0 = until interrupted)")
	recordCmd.Flags().StringVar(&recordOutDir, "output-dir", "", "directory for output files (overrides config)")
	recordCmd.Flags().BoolVar(&recordNoMerge, "no-merge", false, "keep the two stream files instead of merging")
	recordCmd.Flags().Float64Var(&recordRate, "sample-rate", 0, "pin both streams to this rate (overrides config)")
	recordCmd.Flags().BoolVar(&recordDryRun, "dry-run", false, "use a synthetic audio host instead of real devices")
	recordCmd.Flags().BoolVar(&recordNoTUI, "no-tui", false, "plain output instead of the live monitor")
}

func runRecord() {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if recordOutDir != "" {
		cfg.Output.Directory = recordOutDir
	}
	if recordNoMerge {
		cfg.Output.MergeAfterStop = false
	}
	if recordRate > 0 {
		cfg.Capture.SampleRate = recordRate
	}

	host, auth, err := buildHost(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audio host: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = host.Close() }()

	coord := duplex.NewCoordinator(host, auth, cfg, log)
	defer coord.Close()

	if err := coord.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start recording: %v\n", err)
		os.Exit(1)
	}
	if recordNoTUI {
		waitPlain(coord, cfg.Output.Directory)
	} else {
		runMonitor(coord, cfg.Output.Directory)
	}

	coord.Stop()
	<-coord.Done()

	res := coord.Result()
	if res.Merged {
		fmt.Printf("Saved %s\n", res.MergedPath)
	} else {
		fmt.Printf("Saved %s\n", res.SystemPath)
		fmt.Printf("Saved %s\n", res.MicPath)
	}
	fmt.Printf("System audio: %d frames, %s\n", res.System.Frames, res.System.Elapsed.Round(time.Millisecond))
	fmt.Printf("Microphone:   %d frames, %s\n", res.Mic.Frames, res.Mic.Elapsed.Round(time.Millisecond))
}

// waitPlain blocks until SIGINT, --duration, or the recording ending on
// its own.
func waitPlain(coord *duplex.Coordinator, outDir string) {
	fmt.Printf("Recording to %s (Ctrl-C to stop)\n", outDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timeout <-chan time.Time
	if recordDuration > 0 {
		timeout = time.After(recordDuration)
	}

	select {
	case <-sigChan:
		fmt.Println("\nStopping...")
	case <-timeout:
		fmt.Println("Duration reached, stopping...")
	case <-coord.Done():
		// A stream ended on its own, a device disappearance most likely.
	}
}

// runMonitor shows the live TUI until the user quits or the recording
// ends.
func runMonitor(coord *duplex.Coordinator, outDir string) {
	p := ui.Run(outDir)

	stopFeed := make(chan struct{})
	go func() {
		started := time.Now()
		rate, channels := coord.CaptureFormat()

		var deadline <-chan time.Time
		if recordDuration > 0 {
			deadline = time.After(recordDuration)
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopFeed:
				return
			case <-coord.Done():
				p.Send(ui.StoppedMsg{})
				return
			case <-deadline:
				p.Send(ui.StoppedMsg{})
				return
			case <-ticker.C:
				sys, mic := coord.Snapshots()
				p.Send(ui.StatusMsg{
					Recording:  coord.Active(),
					Elapsed:    time.Since(started),
					SampleRate: rate,
					Channels:   channels,
					System:     toStats(sys),
					Mic:        toStats(mic),
				})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor failed: %v\n", err)
	}
	close(stopFeed)
}

func toStats(s record.Summary) ui.StreamStats {
	return ui.StreamStats{
		Frames:       s.Frames,
		MeasuredRate: s.MeasuredRate,
		Dropped:      s.Dropped,
		Mismatch:     s.Mismatch,
	}
}

func buildHost(log *zap.SugaredLogger) (hostaudio.Host, duplex.Authorizer, error) {
	if recordDryRun {
		return hostaudio.NewStubHost(), duplex.StaticAuthorizer{Microphone: true, SystemAudio: true}, nil
	}
	host, err := hostaudio.NewMalgoHost(log, hostaudio.Options{})
	if err != nil {
		return nil, nil, err
	}
	return host, duplex.NewHostAuthorizer(host, log), nil
}
