// ABOUTME: The devices command, printing the host's audio landscape
// ABOUTME: Default endpoints, rates, and active capturable sources
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices and active audio sources",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

func listDevices() {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	host, err := hostaudio.NewMalgoHost(log, hostaudio.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audio host: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = host.Close() }()

	dir := hostaudio.NewDirectory(host)

	printEndpoint(dir, "Output", dir.DefaultOutputEndpoint)
	printEndpoint(dir, "Input", dir.DefaultInputEndpoint)

	sources, err := dir.ActiveAudioSources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list audio sources: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nAudio sources:")
	if len(sources) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, s := range sources {
		marker := " "
		if s.AudioActive {
			marker = "*"
		}
		fmt.Printf("  %s pid %-6d %s\n", marker, s.PID, s.Name)
	}
	fmt.Println("\n* = currently producing audio")
}

func printEndpoint(dir *hostaudio.Directory, label string, resolve func() (hostaudio.EndpointRef, error)) {
	ep, err := resolve()
	if err != nil {
		if errors.Is(err, hostaudio.ErrNoDefaultDevice) {
			fmt.Printf("%s: no default device\n", label)
			return
		}
		fmt.Printf("%s: %v\n", label, err)
		return
	}

	fmt.Printf("%s: endpoint %d", label, ep)
	if hz, err := dir.NominalRate(ep); err == nil {
		fmt.Printf(", %.0f Hz", hz)
	}
	if n, err := dir.BufferFrameSize(ep); err == nil {
		fmt.Printf(", %d frame buffer", n)
	}
	fmt.Println()
}
