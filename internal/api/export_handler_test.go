package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/export"
)

func TestExport_Accepted(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.region(t, 1000, 3000)

	out := filepath.Join(h.dir, "final.mkv")
	rr := h.do(t, http.MethodPost, "/export", map[string]any{"output_path": out, "mode": "cut"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeInto[ExportResponse](t, rr)
	if resp.SessionID != "session-1" || resp.OutputPath != out || resp.Encoder != "libx264" {
		t.Errorf("response = %+v", resp)
	}

	if len(h.encoder.requests) != 1 {
		t.Fatalf("encoder requests = %d, want 1", len(h.encoder.requests))
	}
	req := h.encoder.requests[0]
	if len(req.Segments) != 2 {
		t.Errorf("cut mode segments = %+v", req.Segments)
	}
	if req.Options.InputPath != h.video || !req.Options.HasAudio || req.Options.Width != 1920 {
		t.Errorf("options = %+v", req.Options)
	}

	status := decodeInto[StatusResponse](t, h.do(t, http.MethodGet, "/status", nil))
	if status.State != "encoding" {
		t.Errorf("status state = %q, want encoding", status.State)
	}
}

func TestExport_DefaultsToSuggestedOutput(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.region(t, 1000, 3000)

	rr := h.do(t, http.MethodPost, "/export", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := decodeInto[ExportResponse](t, rr).OutputPath; got != filepath.Join(h.dir, "clip_cut.mp4") {
		t.Errorf("output = %q", got)
	}
}

func TestExport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, h *harness)
		body       func(h *harness) any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no video",
			setup:      func(t *testing.T, h *harness) {},
			body:       func(h *harness) any { return map[string]any{} },
			wantStatus: http.StatusConflict,
			wantCode:   "NO_VIDEO",
		},
		{
			name: "cut mode removes everything",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 0, 10000)
			},
			body:       func(h *harness) any { return map[string]any{"mode": "cut"} },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "NO_SEGMENTS",
		},
		{
			name:       "bad mode",
			setup:      func(t *testing.T, h *harness) { h.load(t) },
			body:       func(h *harness) any { return map[string]any{"mode": "both"} },
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "output overwrites input",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
			},
			body: func(h *harness) any {
				return map[string]any{"output_path": h.video}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "relative output",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
			},
			body: func(h *harness) any {
				return map[string]any{"output_path": "out.mp4"}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "separator colour outside palette",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
			},
			body: func(h *harness) any {
				return map[string]any{"separator": map[string]any{
					"enabled": true, "duration": 1, "color": "red:d=9999[x];[x]nullsink",
				}}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "separator duration out of range",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
			},
			body: func(h *harness) any {
				return map[string]any{"separator": map[string]any{
					"enabled": true, "duration": 1e6, "color": "black",
				}}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "already running",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
				h.encoder.running = true
			},
			body:       func(h *harness) any { return map[string]any{} },
			wantStatus: http.StatusConflict,
			wantCode:   "SESSION_ACTIVE",
		},
		{
			name: "launch failure",
			setup: func(t *testing.T, h *harness) {
				h.load(t)
				h.region(t, 1000, 3000)
				h.encoder.startErr = fmt.Errorf("%w: exec: \"ffmpeg\": not found", encode.ErrLaunch)
			},
			body:       func(h *harness) any { return map[string]any{} },
			wantStatus: http.StatusInternalServerError,
			wantCode:   "LAUNCH_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)
			rr := h.do(t, http.MethodPost, "/export", tt.body(h))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if got := decodeJSONBody(t, rr)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestCancelExport(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/export/cancel", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("idle cancel status = %d, want 409", rr.Code)
	}

	h.encoder.running = true
	rr = h.do(t, http.MethodPost, "/export/cancel", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d, want 202", rr.Code)
	}
	if h.encoder.IsRunning() {
		t.Error("encoder still running after cancel")
	}
}

func TestExportEDL(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.region(t, 1000, 3000)

	outDir := filepath.Join(h.dir, "edl")
	if err := os.Mkdir(outDir, 0755); err != nil {
		t.Fatal(err)
	}

	rr := h.do(t, http.MethodPost, "/export/edl", export.EDLRequest{OutputDir: outDir, Mode: cuts.ModeKeep})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeInto[export.EDLResponse](t, rr)
	if resp.ClipCount != 1 || resp.Format != export.FormatEDL {
		t.Errorf("response = %+v", resp)
	}
	if resp.OutputPath != filepath.Join(outDir, "clip.edl") {
		t.Errorf("output = %q", resp.OutputPath)
	}
	if _, err := os.Stat(resp.OutputPath); err != nil {
		t.Errorf("EDL not written: %v", err)
	}
}

func TestExportEDL_BadRequests(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.region(t, 1000, 3000)

	tests := []struct {
		name string
		req  export.EDLRequest
	}{
		{"missing dir", export.EDLRequest{}},
		{"traversal", export.EDLRequest{OutputDir: h.dir + "/../x"}},
		{"bad mode", export.EDLRequest{OutputDir: h.dir, Mode: "sideways"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/export/edl", tt.req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestWriteWorkspaceError_Default(t *testing.T) {
	rr := httptest.NewRecorder()
	writeWorkspaceError(rr, errors.New("disk on fire"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}
