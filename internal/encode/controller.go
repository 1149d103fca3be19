// Package encode runs ffmpeg export sessions: it launches the process, turns
// its progress stream into percentages, and supports cancellation with a
// bounded grace period before the process is killed.
package encode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
	"github.com/simplecut/simplecut-agent/internal/logging"
)

var (
	// ErrSessionActive is returned by Start while another session runs.
	ErrSessionActive = errors.New("an encoding session is already running")
	// ErrLaunch wraps failures to spawn the encoder process.
	ErrLaunch = errors.New("cannot launch encoder")
)

// DefaultTerminateGrace is how long a cancelled encoder gets to exit after
// the interrupt before it is killed.
const DefaultTerminateGrace = 5 * time.Second

const maxLineBytes = 1024 * 1024

// EncoderSource yields the video encoder to build commands for.
type EncoderSource interface {
	Encoder(ctx context.Context) hwaccel.Encoder
}

// Recorder persists session rows. Failures are logged, never fatal.
type Recorder interface {
	CreateSession(ctx context.Context, s SessionRecord) error
	UpdateSessionProgress(ctx context.Context, id string, progress int) error
	FinishSession(ctx context.Context, id string, state State, errMsg string) error
}

// SessionRecord is the row written when a session starts.
type SessionRecord struct {
	ID         string
	InputPath  string
	OutputPath string
	Encoder    string
	LogPath    string
}

// Config holds the controller's configuration.
type Config struct {
	Binary         string // ffmpeg path; empty = "ffmpeg" from PATH
	LogDir         string // session transcripts; empty disables them
	TerminateGrace time.Duration
	Encoders       EncoderSource
	Recorder       Recorder // optional
	Logger         *slog.Logger
}

// Request describes one export.
type Request struct {
	Segments []cuts.Segment
	Options  ffmpeg.Options
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     State   `json:"state"`
	SessionID string  `json:"session_id,omitempty"`
	Percent   int     `json:"percent"`
	Encoder   string  `json:"encoder,omitempty"`
	Last      *Result `json:"last,omitempty"`
}

// Controller runs at most one encoding session at a time.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	busy      bool // reserved from Start until the terminal event
	state     State
	current   *Session
	last      *Result
	listeners map[int]Listener
	nextID    int
}

func NewController(cfg Config) *Controller {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Encoders == nil {
		cfg.Encoders = hwaccel.NewDetector(cfg.Binary, false, cfg.Logger)
	}
	return &Controller{
		cfg:       cfg,
		logger:    logging.WithComponent(cfg.Logger, "encode"),
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for all future session events.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// IsRunning reports whether a session is in progress.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Status returns the current state and progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Last: c.last}
	if c.current != nil && c.state == StateRunning {
		st.SessionID = c.current.ID
		st.Percent = int(c.current.percent.Load())
		st.Encoder = c.current.Encoder.Name
	}
	return st
}

// Cancel asks the running session to stop. It returns false when nothing is
// running. The session ends with StateCancelled once the encoder exits.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	s := c.current
	running := c.state == StateRunning
	c.mu.Unlock()

	if s == nil || !running {
		return false
	}
	if s.cancelRequested.CompareAndSwap(false, true) {
		s.log.Warn("cancellation requested")
		c.emit(Event{Kind: EventLog, SessionID: s.ID, Level: slog.LevelWarn, Message: "cancelling encode"})
	}
	return true
}

// Start builds the command for req and launches ffmpeg. Command construction
// errors are returned before anything is spawned. A spawn failure is reported
// both as an error wrapping ErrLaunch and as a Failed terminal event; no
// started event is emitted in that case. ctx bounds the whole session, so it
// must outlive the caller's request.
func (c *Controller) Start(ctx context.Context, req Request) (*Session, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.busy = true
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}

	if len(req.Segments) == 0 {
		release()
		return nil, ffmpeg.ErrNoSegments
	}

	encoder := c.cfg.Encoders.Encoder(ctx)
	command, err := ffmpeg.NewCommandBuilder(encoder).Build(req.Segments, req.Options)
	if err != nil {
		release()
		return nil, fmt.Errorf("build command: %w", err)
	}

	s := &Session{
		ID:         uuid.NewString(),
		Encoder:    encoder,
		InputPath:  req.Options.InputPath,
		OutputPath: req.Options.OutputPath,
		TotalMs:    int64(command.TotalDuration * 1000),
		args:       command.Args,
		done:       make(chan struct{}),
		started:    time.Now(),
	}
	s.openLog(c.cfg.LogDir, c.logger)
	s.logPreamble(req, command)

	c.record(func(ctx context.Context, r Recorder) error {
		return r.CreateSession(ctx, SessionRecord{
			ID:         s.ID,
			InputPath:  s.InputPath,
			OutputPath: s.OutputPath,
			Encoder:    encoder.Name,
			LogPath:    s.LogPath,
		})
	})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cmd := exec.CommandContext(runCtx, c.cfg.Binary, command.Args...)
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = c.cfg.TerminateGrace

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		// progress and diagnostics arrive on one stream
		cmd.Stderr = cmd.Stdout
		err = cmd.Start()
	}
	if err != nil {
		cancel()
		res := s.result(StateFailed, -1, fmt.Sprintf("cannot launch ffmpeg: %v", err), "")
		s.log.Error("launch failed", "error", err, "binary", c.cfg.Binary)
		c.logger.Error("encoder launch failed", "session_id", s.ID, "error", err)
		c.finish(s, res)
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	s.cmd = cmd

	c.mu.Lock()
	c.current = s
	c.state = StateRunning
	c.mu.Unlock()

	c.logger.Info("encoding started",
		"session_id", s.ID,
		"encoder", encoder.Name,
		"segments", len(req.Segments),
		"total_ms", s.TotalMs,
		"output", logging.SanitizePath(s.OutputPath),
	)
	c.emit(Event{Kind: EventStarted, SessionID: s.ID, Message: encoder.Display})
	c.emit(Event{Kind: EventLog, SessionID: s.ID, Level: slog.LevelInfo, Message: "encoder: " + encoder.Display})

	go c.run(runCtx, s, stdout)

	return s, nil
}

func (c *Controller) run(ctx context.Context, s *Session, stdout io.Reader) {
	parser := NewProgressParser(s.TotalMs)
	tail := newLimitedWriter(maxDiagnosticBytes)
	cancelled := false

	scanner := newLineScanner(stdout)
	for {
		for scanner.Scan() {
			if s.cancelRequested.Load() {
				s.log.Warn("terminating encoder", "grace", c.cfg.TerminateGrace)
				// interrupt now, kill once the grace period has passed
				s.cancel()
				cancelled = true
				break
			}
			c.handleLine(s, parser, tail, strings.TrimSpace(scanner.Text()))
		}

		err := scanner.Err()
		if cancelled || err == nil {
			break
		}
		if errors.Is(err, bufio.ErrTooLong) {
			// the rest of the long line comes back as a diagnostic
			s.log.Warn("encoder output line too long, skipping")
			scanner = newLineScanner(stdout)
			continue
		}
		s.log.Warn("reading encoder output failed", "error", err)
		// ffmpeg blocks on a full pipe, so Wait would never return
		_, _ = io.Copy(io.Discard, stdout)
		break
	}

	waitErr := s.cmd.Wait()
	s.cancel()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	var res Result
	switch {
	case s.cancelRequested.Load() || ctx.Err() != nil:
		res = s.result(StateCancelled, exitCode, "encoding cancelled", "")
		s.log.Warn("encoding cancelled by user")
	case waitErr == nil:
		s.percent.Store(100)
		c.emit(Event{Kind: EventProgress, SessionID: s.ID, Percent: 100})
		res = s.result(StateSucceeded, 0, "encoding completed successfully", "")
		s.log.Info("encoding completed")
	case exitCode >= 0 && !errors.Is(waitErr, exec.ErrWaitDelay):
		res = s.result(StateFailed, exitCode, fmt.Sprintf("ffmpeg failed (exit code %d)", exitCode), tail.String())
		s.log.Error(res.Message)
	default:
		res = s.result(StateFailed, exitCode, fmt.Sprintf("ffmpeg failed: %v", waitErr), tail.String())
		s.log.Error(res.Message)
	}

	level := slog.LevelInfo
	switch res.State {
	case StateFailed:
		level = slog.LevelError
	case StateCancelled:
		level = slog.LevelWarn
	}
	c.emit(Event{Kind: EventLog, SessionID: s.ID, Level: level, Message: res.Message})

	c.finish(s, res)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return scanner
}

func (c *Controller) handleLine(s *Session, parser *ProgressParser, tail *limitedWriter, line string) {
	res := parser.Feed(line)

	switch res.Kind {
	case LineDiagnostic:
		fmt.Fprintln(tail, line)
		s.log.Debug(line)
		c.emit(Event{Kind: EventLog, SessionID: s.ID, Level: slog.LevelDebug, Message: line})
	case LineProgress:
		if res.BlockEnd {
			s.log.Debug("progress", "out_ms", parser.CurrentMs(), "status", res.Status)
		}
	}

	if res.HasPercent {
		s.percent.Store(int32(res.Percent))
		c.emit(Event{Kind: EventProgress, SessionID: s.ID, Percent: res.Percent})
		c.record(func(ctx context.Context, r Recorder) error {
			return r.UpdateSessionProgress(ctx, s.ID, res.Percent)
		})
	}
}

// finish records the outcome, frees the controller for the next session and
// only then notifies listeners.
func (c *Controller) finish(s *Session, res Result) {
	s.log.Info("session finished", "state", res.State, "message", res.Message, "duration", res.Duration)
	s.closeLog()

	errMsg := ""
	if res.State != StateSucceeded {
		errMsg = res.Message
	}
	c.record(func(ctx context.Context, r Recorder) error {
		if res.State == StateSucceeded {
			if err := r.UpdateSessionProgress(ctx, s.ID, 100); err != nil {
				return err
			}
		}
		return r.FinishSession(ctx, s.ID, res.State, errMsg)
	})

	c.logger.Info("encoding finished",
		"session_id", s.ID,
		"state", res.State,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
	)

	c.mu.Lock()
	c.state = res.State
	c.last = &res
	c.busy = false
	c.mu.Unlock()

	s.res = res
	c.emit(Event{Kind: EventFinished, SessionID: s.ID, Message: res.Message, Result: &res})
	close(s.done)
}

func (c *Controller) record(fn func(context.Context, Recorder) error) {
	if c.cfg.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, c.cfg.Recorder); err != nil {
		c.logger.Warn("failed to record session", "error", err)
	}
}
