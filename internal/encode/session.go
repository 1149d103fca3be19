package encode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
	"github.com/simplecut/simplecut-agent/internal/logging"
)

// Session is the handle for one launched encode.
type Session struct {
	ID         string
	Encoder    hwaccel.Encoder
	InputPath  string
	OutputPath string
	LogPath    string
	TotalMs    int64

	args    []string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	started time.Time

	log     *slog.Logger
	logFile *logging.SessionLog

	cancelRequested atomic.Bool
	percent         atomic.Int32

	done chan struct{}
	res  Result
}

// Done is closed once the session has reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Args returns the ffmpeg arguments, without the binary.
func (s *Session) Args() []string {
	return append([]string(nil), s.args...)
}

func (s *Session) openLog(dir string, fallback *slog.Logger) {
	s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	if dir == "" {
		return
	}
	sl, err := logging.OpenSessionLog(dir, s.InputPath, s.started)
	if err != nil {
		fallback.Warn("cannot open session log", "error", err)
		return
	}
	s.logFile = sl
	s.log = sl.Logger.With("session_id", s.ID)
	s.LogPath = sl.Path()
}

func (s *Session) closeLog() {
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

func (s *Session) logPreamble(req Request, command *ffmpeg.Command) {
	opts := req.Options
	s.log.Info("=== encoding session ===")
	s.log.Info("encoder", "name", s.Encoder.Name, "display", s.Encoder.Display)
	s.log.Info("source", "path", opts.InputPath)
	s.log.Info("destination", "path", opts.OutputPath)
	s.log.Info("segments", "count", len(req.Segments), "list", formatSegments(req))
	s.log.Info("audio", "present", opts.HasAudio)
	if opts.UsesSeparators(len(req.Segments)) {
		s.log.Info("separators", "duration", opts.Separator.Duration, "color", string(opts.Separator.Color))
	}
	s.log.Info("command", "line", strings.Join(append([]string{"ffmpeg"}, command.Args...), " "))
	s.log.Info("expected duration", "seconds", command.TotalDuration)
}

func formatSegments(req Request) string {
	parts := make([]string, len(req.Segments))
	for i, seg := range req.Segments {
		parts[i] = fmt.Sprintf("(%.3f, %.3f)", seg.Start, seg.End)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Session) result(state State, exitCode int, msg, detail string) Result {
	return Result{
		SessionID:  s.ID,
		State:      state,
		Message:    msg,
		ExitCode:   exitCode,
		Detail:     detail,
		OutputPath: s.OutputPath,
		LogPath:    s.LogPath,
		Duration:   time.Since(s.started),
	}
}
