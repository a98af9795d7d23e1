// ABOUTME: The play command, previewing a recording through the speakers
// ABOUTME: Streams a recorded WAV file to the default output device
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tapdeck-io/tapdeck/internal/playback"
	"github.com/tapdeck-io/tapdeck/internal/wavfile"
)

var playVolume int

var playCmd = &cobra.Command{
	Use:   "play <recording.wav>",
	Short: "Play a recording through the default output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPlay(args[0])
	},
}

func init() {
	playCmd.Flags().IntVar(&playVolume, "volume", 100, "playback volume (0-100)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(path string) {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	info, err := wavfile.Probe(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Playing %s (%d Hz, %d ch, %s)\n", path, info.SampleRate, info.Channels, info.Duration)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	player := playback.NewPlayer(log)
	player.SetVolume(playVolume)

	if err := player.Play(ctx, path); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Playback failed: %v\n", err)
		os.Exit(1)
	}
}
