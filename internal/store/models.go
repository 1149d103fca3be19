package store

import (
	"time"

	"github.com/simplecut/simplecut-agent/internal/encode"
)

// SessionRow is one persisted encode session.
type SessionRow struct {
	ID         string       `json:"id"`
	InputPath  string       `json:"input_path"`
	OutputPath string       `json:"output_path"`
	Status     encode.State `json:"status"`
	Progress   int          `json:"progress"`
	Error      string       `json:"error,omitempty"`
	LogPath    string       `json:"log_path,omitempty"`
	Encoder    string       `json:"encoder,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
