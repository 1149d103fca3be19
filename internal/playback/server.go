// Package playback streams the loaded video to the preview player with
// HTTP byte-range support.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrNoSource is returned when no video has been loaded yet.
var ErrNoSource = errors.New("no video loaded")

// mime's table lacks most container types on minimal systems.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// ContentType resolves the MIME type served for path.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Server serves whichever file is currently set as the source.
type Server struct {
	logger *slog.Logger

	mu     sync.RWMutex
	source string
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{logger: logger}
}

// SetSource switches the served file. An empty path unloads it.
func (s *Server) SetSource(path string) {
	s.mu.Lock()
	s.source = path
	s.mu.Unlock()
}

func (s *Server) Source() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source, s.source != ""
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, ok := s.Source()
	if !ok {
		http.Error(w, ErrNoSource.Error(), http.StatusNotFound)
		return
	}
	if err := s.ServeFile(w, r, path); err != nil {
		s.logger.Error("playback failed", "path", path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ServeFile writes filePath, or the requested byte range of it. Client
// disconnects mid-copy are not errors.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", ContentType(filePath))
	h.Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))

	parsed, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// malformed ranges are ignored, as RFC 9110 allows
		parsed = nil
	case err != nil:
		return err
	}

	if parsed == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = io.Copy(w, file)
		}
		return nil
	}

	if _, err := file.Seek(parsed.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	h.Set("Content-Length", strconv.FormatInt(parsed.ContentLength(), 10))
	h.Set("Content-Range", parsed.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		_, _ = io.CopyN(w, file, parsed.ContentLength())
	}
	return nil
}
