package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/export"
	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/video", loadVideoHandler(cfg))
		r.Get("/video", getVideoHandler(cfg))
		r.Get("/playback", playbackHandler(cfg))
		r.Head("/playback", playbackHandler(cfg))

		r.Get("/regions", regionsHandler(cfg))
		r.Post("/markers/a", markerHandler(cfg, cfg.Workspace.SetMarkerA))
		r.Post("/markers/b", markerHandler(cfg, cfg.Workspace.SetMarkerB))
		r.Delete("/markers/a", snapshotHandler(cfg, cfg.Workspace.CancelMarkerA))
		r.Put("/regions/{index}", editRegionHandler(cfg))
		r.Delete("/regions/{index}", removeRegionHandler(cfg))
		r.Delete("/regions", clearRegionsHandler(cfg))
		r.Post("/regions/merge", snapshotHandler(cfg, cfg.Workspace.MergeOverlapping))
		r.Post("/history/undo", snapshotHandler(cfg, cfg.Workspace.Undo))
		r.Post("/history/redo", snapshotHandler(cfg, cfg.Workspace.Redo))
		r.Get("/segments", segmentsHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/export/cancel", cancelExportHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))

		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))

		r.Get("/events", cfg.Hub.ServeHTTP)
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enc := cfg.Workspace.EncodingStatus()
		video, loaded := cfg.Workspace.Video()

		state := "idle"
		switch {
		case enc.State == encode.StateRunning:
			state = "encoding"
		case loaded:
			state = "editing"
		}

		resp := StatusResponse{
			State:       state,
			VideoLoaded: loaded,
			Encoding:    enc,
			Clients:     cfg.Hub.ClientCount(),
		}
		if loaded {
			v := VideoToResponse(video, cfg.Workspace.SuggestedOutput())
			resp.Video = &v
		}
		if cfg.Encoders != nil {
			if e, ok := cfg.Encoders.Peek(); ok {
				resp.Encoder = &EncoderInfo{Name: e.Name, Display: e.Display, Hardware: e.Hardware}
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		meta, err := cfg.Workspace.LoadVideo(r.Context(), req.Path)
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(meta, cfg.Workspace.SuggestedOutput()))
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, ok := cfg.Workspace.Video()
		if !ok {
			writeWorkspaceError(w, editor.ErrNoVideo)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(meta, cfg.Workspace.SuggestedOutput()))
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Playback == nil {
			WriteError(w, http.StatusNotFound, "playback disabled", "NOT_FOUND")
			return
		}
		cfg.Playback.ServeHTTP(w, r)
	}
}

func regionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Workspace.Snapshot())
	}
}

func snapshotHandler(cfg ServerConfig, op func() (editor.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := op()
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func markerHandler(cfg ServerConfig, op func(int64) (editor.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MarkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.PositionMs == nil {
			WriteError(w, http.StatusBadRequest, "position_ms is required", "BAD_REQUEST")
			return
		}
		snapshotHandler(cfg, func() (editor.Snapshot, error) {
			return op(*req.PositionMs)
		})(w, r)
	}
}

func regionIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "region index must be an integer", "BAD_REQUEST")
		return 0, false
	}
	return index, true
}

func editRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := regionIndex(w, r)
		if !ok {
			return
		}
		var req EditRegionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.StartMs == nil || req.EndMs == nil {
			WriteError(w, http.StatusBadRequest, "start_ms and end_ms are required", "BAD_REQUEST")
			return
		}
		snapshotHandler(cfg, func() (editor.Snapshot, error) {
			return cfg.Workspace.EditRegion(index, *req.StartMs, *req.EndMs)
		})(w, r)
	}
}

func removeRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := regionIndex(w, r)
		if !ok {
			return
		}
		snapshotHandler(cfg, func() (editor.Snapshot, error) {
			return cfg.Workspace.RemoveRegion(index)
		})(w, r)
	}
}

// clearRegionsHandler removes the region under ?position_ms=, or every
// region when the parameter is absent.
func clearRegionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("position_ms")
		if raw == "" {
			snapshotHandler(cfg, cfg.Workspace.ClearAll)(w, r)
			return
		}
		pos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "position_ms must be an integer", "BAD_REQUEST")
			return
		}
		snapshotHandler(cfg, func() (editor.Snapshot, error) {
			return cfg.Workspace.RemoveRegionAt(pos)
		})(w, r)
	}
}

func segmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := cfg.Workspace.Preferences().Mode
		if raw := r.URL.Query().Get("mode"); raw != "" {
			if raw != string(cuts.ModeKeep) && raw != string(cuts.ModeCut) {
				WriteError(w, http.StatusBadRequest, "mode must be keep or cut", "BAD_REQUEST")
				return
			}
			mode = cuts.Mode(raw)
		}

		segs, err := cfg.Workspace.Segments(mode)
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		if segs == nil {
			segs = []cuts.Segment{}
		}
		WriteJSON(w, http.StatusOK, SegmentsResponse{
			Mode:          mode,
			Segments:      segs,
			TotalDuration: ffmpeg.TotalDuration(segs),
		})
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Workspace.Preferences())
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// start from the current values so partial documents work
		prefs := cfg.Workspace.Preferences()
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.Workspace.UpdatePreferences(r.Context(), prefs); err != nil {
			writeWorkspaceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, prefs)
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		sessions, err := cfg.Repository.ListSessions(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// writeWorkspaceError maps domain errors onto HTTP statuses.
func writeWorkspaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrRejected):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "REJECTED")
	case errors.Is(err, editor.ErrNoVideo):
		WriteError(w, http.StatusConflict, err.Error(), "NO_VIDEO")
	case errors.Is(err, editor.ErrEncoding), errors.Is(err, encode.ErrSessionActive):
		WriteError(w, http.StatusConflict, err.Error(), "SESSION_ACTIVE")
	case errors.Is(err, editor.ErrUnsupported):
		WriteError(w, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FORMAT")
	case errors.Is(err, editor.ErrInvalidOutput), errors.Is(err, editor.ErrInvalidOptions),
		errors.Is(err, export.ErrInvalidPath), errors.Is(err, settings.ErrInvalid):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, ffmpeg.ErrNoSegments):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_SEGMENTS")
	case errors.Is(err, probe.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, probe.ErrNoVideoStream), errors.Is(err, probe.ErrMalformedOutput), errors.Is(err, probe.ErrProcess):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "PROBE_FAILED")
	case errors.Is(err, encode.ErrLaunch):
		WriteError(w, http.StatusInternalServerError, err.Error(), "LAUNCH_FAILED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
