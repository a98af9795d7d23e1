// ABOUTME: Coordinator pairing the system-audio and microphone recorders
// ABOUTME: Both-or-neither start, either-ends-both stop, optional post-stop merge
package duplex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/capture"
	"github.com/tapdeck-io/tapdeck/internal/config"
	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/internal/merge"
	"github.com/tapdeck-io/tapdeck/internal/record"
)

// doneWait bounds how long Stop waits for the teardown queue to confirm
// each session's invalidation before merging.
const doneWait = 5 * time.Second

// Result describes one finished recording.
type Result struct {
	SystemPath string
	MicPath    string
	MergedPath string
	Merged     bool
	System     record.Summary
	Mic        record.Summary
}

// Coordinator runs one paired recording: a system-audio tap and a
// microphone stream started together under one timestamp. Single use,
// like the recorders it owns.
type Coordinator struct {
	log      *zap.SugaredLogger
	host     hostaudio.Host
	auth     Authorizer
	cfg      *config.Config
	queue    *record.TeardownQueue
	registry *Registry

	mu        sync.Mutex
	started   bool
	stopped   bool
	timestamp int64
	rate      float64
	channels  int
	system    *record.Recorder
	mic       *record.Recorder
	systemH   SessionHandle
	micH      SessionHandle

	used     atomic.Bool
	ready    chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	result   Result
}

func NewCoordinator(host hostaudio.Host, auth Authorizer, cfg *config.Config, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		log:      logger.Named("coordinator"),
		host:     host,
		auth:     auth,
		cfg:      cfg,
		queue:    record.NewTeardownQueue(),
		registry: NewRegistry(),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start requests both capture permissions concurrently and, only when
// both are granted, starts both recorders under one shared timestamp. A
// partial grant starts neither stream and creates no files.
//
// c.mu is only taken at the very end to publish the started state:
// permission prompts can block on user consent for arbitrarily long, and
// Active/Snapshots must stay responsive throughout.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.used.Swap(true) {
		return fmt.Errorf("coordinator already started")
	}
	// Whatever happens below, unblock the stream-ended watchers.
	defer close(c.ready)

	micOK, sysOK := c.requestPermissions(ctx)
	if !micOK || !sysOK {
		return fmt.Errorf("capture permissions (microphone=%t system=%t): %w",
			micOK, sysOK, hostaudio.ErrPermissionDenied)
	}

	if err := os.MkdirAll(c.cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ts := time.Now().Unix()
	sysPath := filepath.Join(c.cfg.Output.Directory, fmt.Sprintf("SystemAudio-%d.wav", ts))
	micPath := filepath.Join(c.cfg.Output.Directory, fmt.Sprintf("Microphone-%d.wav", ts))

	tap := capture.NewTap(c.host, hostaudio.SystemMix(), c.cfg.Capture.MuteWhileTapped, c.log)
	if err := tap.Activate(); err != nil {
		return fmt.Errorf("activate system tap: %w", err)
	}

	// Both files carry one project rate so the merge needs no resampling:
	// the configured pin when set, otherwise the system stream's resolved
	// rate.
	projectRate := c.cfg.Capture.SampleRate
	if projectRate <= 0 {
		projectRate = tap.Format().SampleRate
	}

	micSession := capture.NewMicSession(c.host, c.log)

	sysH := c.registry.Add(tap)
	micH := c.registry.Add(micSession)

	system := record.New(c.registry.Ref(sysH), sysPath, projectRate, c.queue, c.log)
	mic := record.New(c.registry.Ref(micH), micPath, projectRate, c.queue, c.log)

	// Either stream ending takes the other down with it. The watcher
	// waits for Start to publish its state first, and the goroutine
	// breaks the re-entrancy from invalidation handlers firing inside
	// teardown into Stop's own locking.
	system.OnEnded(func() { go c.stopWhenReady() })
	mic.OnEnded(func() { go c.stopWhenReady() })

	if err := system.Start(); err != nil {
		c.abort(tap, micSession, sysH, micH)
		return fmt.Errorf("start system recorder: %w", err)
	}
	if err := mic.Start(); err != nil {
		system.Stop()
		c.awaitDone(system)
		c.abort(nil, micSession, sysH, micH)
		c.removeIfEmpty(sysPath)
		return fmt.Errorf("start microphone recorder: %w", err)
	}

	c.mu.Lock()
	c.system, c.mic = system, mic
	c.systemH, c.micH = sysH, micH
	c.timestamp = ts
	c.rate = projectRate
	c.channels = tap.Format().Channels
	c.started = true
	c.mu.Unlock()

	c.log.Infow("paired recording started",
		"system", sysPath, "microphone", micPath, "hz", projectRate)
	return nil
}

// stopWhenReady defers a stream-ended stop until Start has published its
// state. After a failed Start the ready gate is open but started stays
// false, so the Stop degrades to a no-op.
func (c *Coordinator) stopWhenReady() {
	<-c.ready
	c.Stop()
}

func (c *Coordinator) requestPermissions(ctx context.Context) (micOK, sysOK bool) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		micOK = c.auth.RequestMicrophoneAccess(ctx)
	}()
	go func() {
		defer wg.Done()
		sysOK = c.auth.RequestSystemAudioAccess(ctx)
	}()
	wg.Wait()
	return micOK, sysOK
}

// abort tears down sessions that never made it into a running recorder.
func (c *Coordinator) abort(tap, mic capture.Session, sysH, micH SessionHandle) {
	if tap != nil {
		tap.Invalidate()
	}
	if mic != nil {
		mic.Invalidate()
	}
	c.registry.Remove(sysH)
	c.registry.Remove(micH)
}

// removeIfEmpty deletes a file that holds no audio. Start failures on
// the second stream must not leave a stray header-only file behind.
func (c *Coordinator) removeIfEmpty(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Size() <= 128 {
		if err := os.Remove(path); err != nil {
			c.log.Warnw("removing empty output", "path", path, "error", err)
		}
	}
}

// Stop ends both streams, waits for both teardowns, and merges the two
// files when configuration asks for it. The merge setting is read here,
// at stop time, not at start. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	system, mic := c.system, c.mic
	ts := c.timestamp
	c.mu.Unlock()

	c.stopOnce.Do(func() {
		system.Stop()
		mic.Stop()
		c.awaitDone(system)
		c.awaitDone(mic)

		c.registry.Remove(c.systemH)
		c.registry.Remove(c.micH)

		res := Result{
			SystemPath: system.Path(),
			MicPath:    mic.Path(),
			System:     system.Summary(),
			Mic:        mic.Summary(),
		}

		if c.cfg.Output.MergeAfterStop {
			out := filepath.Join(c.cfg.Output.Directory, fmt.Sprintf("Recording-%d.wav", ts))
			if err := merge.Merge(system.Path(), mic.Path(), out, c.log); err != nil {
				c.log.Errorw("merge failed, keeping both stream files", "error", err)
			} else {
				// Originals go only after the merged file exists.
				for _, p := range []string{system.Path(), mic.Path()} {
					if err := os.Remove(p); err != nil {
						c.log.Warnw("removing merged source", "path", p, "error", err)
					}
				}
				res.MergedPath = out
				res.Merged = true
			}
		}

		c.mu.Lock()
		c.result = res
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Coordinator) awaitDone(r *record.Recorder) {
	select {
	case <-r.Done():
	case <-time.After(doneWait):
		c.log.Warnw("timed out waiting for session teardown", "path", r.Path())
	}
}

// Active reports whether either stream is still capturing.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.stopped {
		return false
	}
	return c.system.Active() || c.mic.Active()
}

// Snapshots returns both recorders' live counters. Zero values before
// Start.
func (c *Coordinator) Snapshots() (system, mic record.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.system == nil {
		return record.Summary{}, record.Summary{}
	}
	return c.system.Summary(), c.mic.Summary()
}

// CaptureFormat returns the shared project rate and the system stream's
// channel count. Valid after a successful Start.
func (c *Coordinator) CaptureFormat() (rate float64, channels int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate, c.channels
}

// Done is closed once Stop has finished, merge included.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Result is valid after Done is closed.
func (c *Coordinator) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Close releases the teardown queue. Call after Done.
func (c *Coordinator) Close() {
	c.queue.Close()
}
