package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
)

// stderrTail bounds how much stderr is kept for error reports.
const stderrTail = 4096

// Runner executes ffmpeg with an explicit timeout per invocation.
type Runner struct {
	Binary string
	Log    *logging.Logger
}

// NewRunner returns a Runner for binary ("ffmpeg" when empty).
func NewRunner(binary string, log *logging.Logger) *Runner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{Binary: binary, Log: log}
}

// Job is one ffmpeg invocation.
type Job struct {
	Op       string   // operation label for errors and logs
	Args     []string // without the binary name
	Timeout  time.Duration
	Progress func(seconds float64) // optional; receives encoded media time
	Stderr   io.Writer             // optional; receives the full stderr stream
}

// Run executes job. A non-zero exit or an expired timeout is returned as
// *errors.ExternalToolError; cancellation of ctx as errors.ErrCancelled.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if job.Timeout <= 0 {
		return errors.NewValidationError("timeout", "every ffmpeg invocation needs a positive timeout").WithValue(job.Op)
	}
	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	args := job.Args
	if job.Progress != nil {
		args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	}
	r.Log.Debug("exec %s %s", r.Binary, strings.Join(args, " "))

	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	cmd.WaitDelay = 5 * time.Second

	tail := &tailBuffer{max: stderrTail}
	if job.Stderr != nil {
		cmd.Stderr = io.MultiWriter(tail, job.Stderr)
	} else {
		cmd.Stderr = tail
	}

	var wg sync.WaitGroup
	if job.Progress != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return &errors.ExternalToolError{Tool: "ffmpeg", Op: job.Op, Err: err}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			readProgress(stdout, job.Progress)
		}()
	}

	if err := cmd.Start(); err != nil {
		return &errors.ExternalToolError{Tool: "ffmpeg", Op: job.Op, Err: err}
	}
	wg.Wait()
	err := cmd.Wait()
	if err == nil {
		return nil
	}

	if ctx.Err() != nil && runCtx.Err() != context.DeadlineExceeded {
		return errors.ErrCancelled
	}
	stderr := tail.String()
	te := &errors.ExternalToolError{
		Tool:     "ffmpeg",
		Op:       job.Op,
		TimedOut: runCtx.Err() == context.DeadlineExceeded,
		Reason:   Classify(stderr),
		Stderr:   stderr,
		Err:      err,
	}
	if ee, ok := err.(*exec.ExitError); ok && !te.TimedOut {
		te.ExitCode = ee.ExitCode()
	}
	return te
}

// readProgress parses "-progress" key=value lines and reports encoded time
// in seconds. Reports never go backwards.
func readProgress(r io.Reader, report func(float64)) {
	var last float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), "=")
		if !ok || key != "out_time_us" {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil || us < 0 {
			continue
		}
		if s := float64(us) / 1e6; s > last {
			last = s
			report(s)
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
