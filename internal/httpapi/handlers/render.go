package handlers

import (
	"fmt"
	"math"
	"net/http"

	"motion/internal/httpkit"
	"motion/internal/pkg/errors"
	"motion/internal/render/job"
)

type renderRequest struct {
	TSXCode       string  `json:"tsx_code"`
	CompositionID string  `json:"composition_id"`
	Duration      float64 `json:"duration"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           int     `json:"fps"`
}

// Render accepts a composition definition and runs a render job to
// completion. The request is synchronous; the HTTP write timeout is the
// only bound on total render time.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req renderRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "invalid json body")
		return
	}

	result, err := h.coordinator.Run(ctx, job.Request{
		SourceCode:      req.TSXCode,
		CompositionID:   req.CompositionID,
		DurationSeconds: req.Duration,
		Width:           req.Width,
		Height:          req.Height,
		FPS:             req.FPS,
	})
	if err != nil {
		h.writeRenderError(w, r, err)
		return
	}

	renderSeconds := math.Round(result.Elapsed.Seconds()*100) / 100

	log.Info("render request succeeded",
		"filename", result.Filename,
		"render_time_seconds", renderSeconds,
	)

	httpkit.WriteJSON(w, 200, map[string]any{
		"status":              "success",
		"video_path":          result.OutputPath,
		"filename":            result.Filename,
		"composition_id":      req.CompositionID,
		"duration_seconds":    result.DurationSeconds,
		"render_time_seconds": renderSeconds,
		"file_size_mb":        result.FileSizeMB(),
		"message":             fmt.Sprintf("video rendered in %.2fs", renderSeconds),
	})
}

// writeRenderError maps coordinator failures onto the wire: validation
// failures are 400 with a flat error body, everything else is a 500 whose
// body carries the original message and, outside production, the stack.
func (h *Handler) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.log.FromContext(r.Context())

	if errors.IsValidation(err) {
		log.Warn("render request rejected", "error", err.Error())
		httpkit.WriteErr(w, 400, err.Error())
		return
	}

	log.Error("render request failed",
		"code", string(errors.GetCode(err)),
		"error", err.Error(),
	)

	body := map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
	if h.exposeStacks {
		if stack := errors.GetStackTrace(err); stack != "" {
			body["stack"] = stack
		}
	}
	httpkit.WriteJSON(w, 500, body)
}
