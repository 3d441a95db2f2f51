package handlers

import (
	"net/http"

	"motion/internal/httpkit"
)

// Status reports service liveness. No side effects.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, 200, map[string]any{
		"status":  "ok",
		"message": "motion renderer is running",
		"version": Version,
	})
}
