package api

import (
	"encoding/json"
	"net/http"

	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/export"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editor.ExportRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}
		if req.Mode != nil && *req.Mode != "keep" && *req.Mode != "cut" {
			WriteError(w, http.StatusBadRequest, "mode must be keep or cut", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Workspace.Export(r.Context(), req)
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportResponse{
			SessionID:  sess.ID,
			Encoder:    sess.Encoder.Name,
			OutputPath: sess.OutputPath,
		})
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Workspace.CancelExport() {
			WriteError(w, http.StatusConflict, "no export is running", "NOT_RUNNING")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Mode != "" && req.Mode != "keep" && req.Mode != "cut" {
			WriteError(w, http.StatusBadRequest, "mode must be keep or cut", "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		resp, err := cfg.Workspace.ExportEDL(req)
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
