package probe

import "fmt"

// VideoMetadata describes a probed video file.
type VideoMetadata struct {
	Path          string  `json:"path"`
	DurationMs    int64   `json:"duration_ms"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           float64 `json:"fps"`
	VideoCodec    string  `json:"video_codec"`
	AudioCodec    string  `json:"audio_codec,omitempty"`
	HasAudio      bool    `json:"has_audio"`
	FileSizeBytes int64   `json:"file_size_bytes"`
}

func (m *VideoMetadata) DurationSeconds() float64 {
	return float64(m.DurationMs) / 1000.0
}

// Resolution formats the frame size as WIDTHxHEIGHT.
func (m *VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// DurationFormatted renders the duration as HH:MM:SS.
func (m *VideoMetadata) DurationFormatted() string {
	total := m.DurationMs / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
