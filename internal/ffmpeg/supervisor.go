package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Progress is one parsed stderr progress report.
type Progress struct {
	Frame   int64   `json:"frame"`
	TimeMs  int64   `json:"time_ms"`
	Speed   float64 `json:"speed"`
	Percent float64 `json:"percent"`
}

// Supervisor runs one ffmpeg process, parses its stderr into progress
// reports, and owns teardown: graceful stop on cancellation and removal
// of the partial output file.
type Supervisor struct {
	binary     string
	gracePeriod time.Duration
	logger     *slog.Logger
}

// NewSupervisor creates a supervisor for the given binary. gracePeriod
// is how long a cancelled process gets to exit cleanly before SIGKILL.
func NewSupervisor(binary string, gracePeriod time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		binary:      binary,
		gracePeriod: gracePeriod,
		logger:      logger.With("component", "supervisor"),
	}
}

// RunOptions describes one supervised run.
type RunOptions struct {
	// Args is the argv excluding the binary.
	Args []string

	// TotalDurationMs scales time= reports into a percentage. Zero
	// disables percentage calculation.
	TotalDurationMs int64

	// TotalFrames scales frame= reports when time= is absent, as with
	// image-sequence renders.
	TotalFrames int64

	// Output is deleted when the run does not succeed. Empty means
	// nothing to clean up.
	Output string

	// OnProgress receives parsed reports on the supervisor goroutine.
	OnProgress func(Progress)
}

var (
	timeRe  = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2})\.(\d{2})`)
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	speedRe = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Run executes ffmpeg to completion. Cancellation stops the process
// gracefully, removes the partial output, and returns ErrCancelled. A
// non-zero exit removes the output and returns ErrFFmpegRuntime with
// the last stderr lines attached.
func (s *Supervisor) Run(ctx context.Context, opts RunOptions) error {
	cmd := exec.Command(s.binary, opts.Args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}
	s.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "args", strings.Join(opts.Args, " "))

	// The stderr drain doubles as the progress parser. The last lines
	// are retained for error reporting.
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanCRorLF)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	done := make(chan error, 1)
	go func() {
		var tail []string
		for line := range lines {
			if p, ok := s.parseProgress(line, opts); ok {
				if opts.OnProgress != nil {
					opts.OnProgress(p)
				}
				continue
			}
			tail = append(tail, line)
			if len(tail) > 20 {
				tail = tail[1:]
			}
		}
		err := cmd.Wait()
		if err != nil && len(tail) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.Join(tail, "; "))
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		s.stop(cmd)
		<-done
		s.removeOutput(opts.Output)
		return models.ErrCancelled
	case err := <-done:
		if err != nil {
			s.removeOutput(opts.Output)
			return fmt.Errorf("%w: %v", models.ErrFFmpegRuntime, err)
		}
		return nil
	}
}

// parseProgress extracts a progress report from one stderr line.
func (s *Supervisor) parseProgress(line string, opts RunOptions) (Progress, bool) {
	fm := frameRe.FindStringSubmatch(line)
	tm := timeRe.FindStringSubmatch(line)
	if fm == nil && tm == nil {
		return Progress{}, false
	}

	var p Progress
	if fm != nil {
		p.Frame, _ = strconv.ParseInt(fm[1], 10, 64)
	}
	if tm != nil {
		h, _ := strconv.ParseInt(tm[1], 10, 64)
		m, _ := strconv.ParseInt(tm[2], 10, 64)
		sec, _ := strconv.ParseInt(tm[3], 10, 64)
		cs, _ := strconv.ParseInt(tm[4], 10, 64)
		p.TimeMs = ((h*60+m)*60+sec)*1000 + cs*10
	}
	if sm := speedRe.FindStringSubmatch(line); sm != nil {
		p.Speed, _ = strconv.ParseFloat(sm[1], 64)
	}

	switch {
	case tm != nil && opts.TotalDurationMs > 0:
		p.Percent = clampPercent(float64(p.TimeMs) / float64(opts.TotalDurationMs) * 100)
	case fm != nil && opts.TotalFrames > 0:
		p.Percent = clampPercent(float64(p.Frame) / float64(opts.TotalFrames) * 100)
	}
	return p, true
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// stop asks the process to exit, escalating to SIGKILL after the grace
// period. The caller reaps the process via cmd.Wait; killing an already
// exited process is a no-op. Windows has no SIGTERM equivalent so the
// process is killed directly.
func (s *Supervisor) stop(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
		return
	}
	time.AfterFunc(s.gracePeriod, func() {
		_ = cmd.Process.Kill()
	})
}

func (s *Supervisor) removeOutput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing partial output failed", "path", path, "error", err)
	}
}

// scanCRorLF splits on \n or \r, because ffmpeg rewrites its progress
// line with bare carriage returns.
func scanCRorLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
