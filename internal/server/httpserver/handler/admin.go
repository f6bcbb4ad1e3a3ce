// Package handler provides HTTP request handlers for the admin API.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/slatekv/slatekv-go/internal/infra/buildinfo"
	"github.com/slatekv/slatekv-go/internal/storage"
	"github.com/slatekv/slatekv-go/internal/storage/snapshot"
)

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status:        "running",
		Version:       buildinfo.Version,
		Keys:          h.store.Len(),
		Sequence:      h.store.Sequence(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// handleTriggerSnapshot handles POST /admin/v1/snapshots.
func (h *Handler) handleTriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.snaps.TriggerSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrCaptureInProgress) {
			h.writeError(w, r, http.StatusConflict, "SK-SNAP-4090", "snapshot capture already in progress")
			return
		}
		h.logger.Error("snapshot trigger failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "SK-SNAP-5000", "snapshot failed: "+err.Error())
		return
	}

	h.writeJSON(w, r, http.StatusCreated, snapshotResponse(info))
}

// handleListSnapshots handles GET /admin/v1/snapshots.
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.snaps.ListSnapshots()
	if err != nil {
		h.logger.Error("snapshot list failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "SK-SNAP-5001", "list snapshots failed")
		return
	}

	items := make([]SnapshotResponse, len(infos))
	for i, info := range infos {
		items[i] = snapshotResponse(info)
	}

	h.writeJSON(w, r, http.StatusOK, ListSnapshotsResponse{Snapshots: items})
}

func snapshotResponse(info *snapshot.Info) SnapshotResponse {
	return SnapshotResponse{
		ID:         info.ID,
		Sequence:   info.Sequence,
		EntryCount: info.EntryCount,
		CreatedAt:  info.CreatedAt,
		SizeBytes:  info.Size,
		Checksum:   info.Checksum,
		NodeID:     info.NodeID,
	}
}
