package api

import (
	"time"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/store"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string         `json:"state"`
	VideoLoaded bool           `json:"video_loaded"`
	Encoder     *EncoderInfo   `json:"encoder,omitempty"`
	Encoding    encode.Status  `json:"encoding"`
	Clients     int            `json:"event_clients"`
	Video       *VideoResponse `json:"video,omitempty"`
}

type EncoderInfo struct {
	Name     string `json:"name"`
	Display  string `json:"display"`
	Hardware bool   `json:"hardware"`
}

type LoadVideoRequest struct {
	Path string `json:"path"`
}

type VideoResponse struct {
	*probe.VideoMetadata
	Resolution      string `json:"resolution"`
	Duration        string `json:"duration"`
	SuggestedOutput string `json:"suggested_output"`
}

type MarkerRequest struct {
	PositionMs *int64 `json:"position_ms"`
}

type EditRegionRequest struct {
	StartMs *int64 `json:"start_ms"`
	EndMs   *int64 `json:"end_ms"`
}

type SegmentsResponse struct {
	Mode          cuts.Mode      `json:"mode"`
	Segments      []cuts.Segment `json:"segments"`
	TotalDuration float64        `json:"total_duration"`
}

type ExportResponse struct {
	SessionID  string `json:"session_id"`
	Encoder    string `json:"encoder"`
	OutputPath string `json:"output_path"`
}

type SessionResponse struct {
	ID         string `json:"id"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
	Encoder    string `json:"encoder,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(m *probe.VideoMetadata, suggested string) VideoResponse {
	return VideoResponse{
		VideoMetadata:   m,
		Resolution:      m.Resolution(),
		Duration:        m.DurationFormatted(),
		SuggestedOutput: suggested,
	}
}

func SessionToResponse(s *store.SessionRow) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		InputPath:  s.InputPath,
		OutputPath: s.OutputPath,
		Status:     string(s.Status),
		Progress:   s.Progress,
		Error:      s.Error,
		LogPath:    s.LogPath,
		Encoder:    s.Encoder,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
}
