package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"motion/internal/httpkit"
)

// Download streams a rendered file from the durable output store.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filename := chi.URLParam(r, "filename")

	// The store is keyed by bare filenames; anything that looks like a
	// path is treated as absent rather than resolved.
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		httpkit.WriteErr(w, 404, "file not found")
		return
	}

	rc, contentType, size, err := h.store.GetObject(ctx, filename)
	if err != nil {
		httpkit.WriteErr(w, 404, "file not found")
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	_, _ = io.Copy(w, rc)
}
