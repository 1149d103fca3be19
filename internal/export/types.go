package export

import "github.com/simplecut/simplecut-agent/internal/cuts"

const FormatEDL = "edl"

type EDLRequest struct {
	ProjectName string    `json:"project_name"`
	OutputDir   string    `json:"output_dir"`
	Mode        cuts.Mode `json:"mode"`
}

// Clip is one source range in the cut list.
type Clip struct {
	ClipName  string
	MediaPath string
	StartMs   int64
	EndMs     int64
}

type EDLResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}
