// -----------------------------------------------------------------------
// OCR engine execution - shared process spawning for the external
// recognition binaries
// -----------------------------------------------------------------------

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Spawner runs external engine processes under a shared rate limit so a
// large batch cannot fork-bomb the host.
type Spawner struct {
	logger  arbor.ILogger
	limiter *rate.Limiter
	timeout time.Duration
}

// NewSpawner creates a process spawner. A spawnRate of 0 disables rate
// limiting; a zero timeout disables the per-invocation deadline.
func NewSpawner(logger arbor.ILogger, spawnRate float64, timeout time.Duration) *Spawner {
	var limiter *rate.Limiter
	if spawnRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(spawnRate), 1)
	}
	return &Spawner{
		logger:  logger,
		limiter: limiter,
		timeout: timeout,
	}
}

// Run executes the binary with the given arguments, waiting on the rate
// limiter first. Stderr is captured for error reporting.
func (s *Spawner) Run(ctx context.Context, binary string, args ...string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting to spawn %s: %w", binary, err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug().Str("binary", binary).Strs("args", args).Msg("Spawning OCR engine")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", binary, err, bytes.TrimSpace(stderr.Bytes()))
	}

	s.logger.Debug().
		Str("binary", binary).
		Str("duration", time.Since(start).String()).
		Msg("OCR engine finished")
	return nil
}

// requireFile verifies that an engine actually produced its output file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("engine output %s missing: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("engine output %s is a directory", path)
	}
	return nil
}
