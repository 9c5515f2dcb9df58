package handler

import (
	"net/http"

	"github.com/nifastore/nifa/internal/ui"
)

// UI serves the storefront presentation config.
func UI(cfg ui.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cfg)
	}
}
