// ABOUTME: Sample-rate reconciliation policy
// ABOUTME: Resolves one authoritative rate from conflicting hardware reports
package capture

import (
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// ResolveSampleRate picks the single authoritative rate for an aggregate
// capture chain. The aggregate's effective clock is the real output
// device's clock, not the tap's reported source format: a tap created for
// 48 kHz content played through a 24 kHz output still delivers frames at
// 24 kHz. Recording at the tap's declared rate is what produces
// wrong-speed files, so measured rates win over configured ones, and
// configured ones win over the declaration.
//
// Priority, each level consulted only when the previous is unavailable or
// non-positive:
//
//  1. output device actual rate
//  2. aggregate device actual rate
//  3. aggregate device nominal rate
//  4. output device nominal rate
//  5. declared tap format rate
func ResolveSampleRate(dir *hostaudio.Directory, declared audio.Format, aggregate, output hostaudio.EndpointRef, log *zap.SugaredLogger) float64 {
	type level struct {
		name  string
		query func() (float64, error)
	}

	levels := []level{
		{"output actual", func() (float64, error) { return dir.ActualRate(output) }},
		{"aggregate actual", func() (float64, error) { return dir.ActualRate(aggregate) }},
		{"aggregate nominal", func() (float64, error) { return dir.NominalRate(aggregate) }},
		{"output nominal", func() (float64, error) { return dir.NominalRate(output) }},
	}

	for _, l := range levels {
		hz, err := l.query()
		if err != nil || hz <= 0 {
			continue
		}
		if hz != declared.SampleRate {
			log.Warnw("resolved rate differs from declared tap format",
				"source", l.name, "resolved_hz", hz, "declared_hz", declared.SampleRate)
		} else {
			log.Debugw("sample rate resolved", "source", l.name, "hz", hz)
		}
		return hz
	}

	log.Warnw("no device-reported rate available, falling back to declared tap rate",
		"declared_hz", declared.SampleRate)
	return declared.SampleRate
}

// resolveInputRate is the microphone-side equivalent: actual, then
// nominal, then the declared stream format.
func resolveInputRate(dir *hostaudio.Directory, declared audio.Format, input hostaudio.EndpointRef, log *zap.SugaredLogger) float64 {
	if hz, err := dir.ActualRate(input); err == nil && hz > 0 {
		return hz
	}
	if hz, err := dir.NominalRate(input); err == nil && hz > 0 {
		return hz
	}
	log.Debugw("input device reports no rate, using declared format", "declared_hz", declared.SampleRate)
	return declared.SampleRate
}
