// ABOUTME: The merge command, combining two WAV files after the fact
// ABOUTME: Manual counterpart to the coordinator's merge-on-stop
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tapdeck-io/tapdeck/internal/merge"
	"github.com/tapdeck-io/tapdeck/internal/wavfile"
)

var mergeRemoveSources bool

var mergeCmd = &cobra.Command{
	Use:   "merge <a.wav> <b.wav> <out.wav>",
	Short: "Merge two WAV files into one",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		runMerge(args[0], args[1], args[2])
	},
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeRemoveSources, "remove-sources", false, "delete the input files after a successful merge")
}

func runMerge(a, b, out string) {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	if err := merge.Merge(a, b, out, log); err != nil {
		fmt.Fprintf(os.Stderr, "Merge failed: %v\n", err)
		os.Exit(1)
	}

	info, err := wavfile.Probe(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Merged file unreadable: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d Hz, %d ch, %s)\n", out, info.SampleRate, info.Channels, info.Duration)

	if mergeRemoveSources {
		for _, p := range []string{a, b} {
			if err := os.Remove(p); err != nil {
				fmt.Fprintf(os.Stderr, "Could not remove %s: %v\n", p, err)
			}
		}
	}
}
