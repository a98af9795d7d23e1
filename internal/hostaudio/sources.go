// ABOUTME: Active audio source enumeration
// ABOUTME: Resolves audio-producing processes via gopsutil
package hostaudio

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// enumerateProcessSources lists running processes as capture source
// descriptors. A process is marked audio-active when it holds an open PCM
// device handle; on hosts where open-file inspection is unavailable the
// flag stays false and callers fall back to the unfiltered list.
func enumerateProcessSources() []SourceDescriptor {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}

	sources := make([]SourceDescriptor, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		sources = append(sources, SourceDescriptor{
			Kind:        KindProcess,
			PID:         p.Pid,
			Name:        name,
			AudioActive: holdsPCMHandle(p),
		})
	}
	return sources
}

// holdsPCMHandle reports whether the process has an audio device open.
func holdsPCMHandle(p *process.Process) bool {
	files, err := p.OpenFiles()
	if err != nil {
		return false
	}
	for _, f := range files {
		if strings.HasPrefix(f.Path, "/dev/snd/") || strings.Contains(f.Path, "pulse") {
			return true
		}
	}
	return false
}
