package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nifastore/nifa/internal/backup"
	"github.com/nifastore/nifa/internal/model"
	"github.com/nifastore/nifa/internal/store"
)

const backupListLimit = 50

type BackupHandler struct {
	manager     *backup.Manager
	backupStore *store.BackupStore
	logger      *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backupStore: bs, logger: logger}
}

// List returns the manager status and the most recent backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backupStore.List(backupListLimit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": backups,
	})
}

// Run takes a backup immediately.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.RunNow(r.Context())
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	case errors.Is(err, backup.ErrInProgress):
		writeError(w, http.StatusConflict, "a backup is already running")
		return
	case err != nil:
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	writeJSON(w, http.StatusCreated, b)
}
