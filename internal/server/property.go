package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/proforma/internal/storage"
	"github.com/matthewbaird/proforma/internal/types"
	"github.com/matthewbaird/proforma/internal/validate"
)

// PropertyHandler serves version reads and full-aggregate writes.
type PropertyHandler struct {
	repo *storage.Repo
	hub  *WatchHub
}

// NewPropertyHandler creates a handler over the repository. hub may be
// nil when revision broadcasting is not wanted.
func NewPropertyHandler(repo *storage.Repo, hub *WatchHub) *PropertyHandler {
	return &PropertyHandler{repo: repo, hub: hub}
}

// GetVersions lists version summaries.
func (h *PropertyHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyID")
	versions, err := h.repo.ListVersions(r.Context(), propertyID)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, "Versions retrieved", versions)
}

// GetVersion returns one aggregate snapshot.
func (h *PropertyHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyID")
	version := chi.URLParam(r, "version")
	pv, err := h.repo.GetVersion(r.Context(), propertyID, version)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, "Version retrieved", pv)
}

// SaveVersion replaces the full aggregate behind a revision check. The
// draft is validated server-side; violations come back as a
// details.message array and nothing is written.
func (h *PropertyHandler) SaveVersion(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyID")
	version := chi.URLParam(r, "version")

	var payload types.SavePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	stored, err := h.repo.GetVersion(r.Context(), propertyID, version)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}
	if stored.IsHistorical {
		writeError(w, r, http.StatusConflict, "HISTORICAL_READONLY", "Historical versions are read-only")
		return
	}
	if payload.ExpectedRevision != stored.Revision {
		writeRevisionMismatch(w, r, payload.ExpectedRevision, stored.Revision)
		return
	}

	next := stored.Clone()
	next.PropertyDetails = payload.PropertyDetails
	next.UnderwritingInputs = payload.UnderwritingInputs
	next.Brokers = payload.Brokers
	next.Tenants = payload.Tenants

	if violations := validate.Draft(next); len(violations) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Property draft failed validation", violations...)
		return
	}

	next.Revision = stored.Revision + 1
	if err := h.repo.UpdateVersion(r.Context(), next, stored.Revision); err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}

	h.broadcast(next)
	writeData(w, r, http.StatusOK, fmt.Sprintf("Property version %s saved", version), next)
}

// SaveAs persists the payload as the next version and retires the
// current one. Unlike SaveVersion the aggregate is accepted as-is; the
// new version is the place to fix what is still invalid.
func (h *PropertyHandler) SaveAs(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyID")
	version := chi.URLParam(r, "version")

	var payload types.SavePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	stored, err := h.repo.GetVersion(r.Context(), propertyID, version)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}
	if payload.ExpectedRevision != stored.Revision {
		writeRevisionMismatch(w, r, payload.ExpectedRevision, stored.Revision)
		return
	}

	versions, err := h.repo.ListVersions(r.Context(), propertyID)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}

	next := stored.Clone()
	next.Version = nextVersionString(versions, stored.Version)
	next.Revision = 0
	next.IsLatest = true
	next.IsHistorical = false
	next.PropertyDetails = payload.PropertyDetails
	next.UnderwritingInputs = payload.UnderwritingInputs
	next.Brokers = payload.Brokers
	next.Tenants = payload.Tenants

	if err := h.repo.CreateNextVersion(r.Context(), stored, stored.Revision, next); err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}

	h.broadcast(next)
	writeData(w, r, http.StatusCreated, fmt.Sprintf("Property saved as version %s", next.Version), next)
}

func (h *PropertyHandler) broadcast(pv *types.PropertyVersion) {
	if h.hub != nil {
		h.hub.Broadcast(RevisionUpdate{
			PropertyID: pv.PropertyID,
			Version:    pv.Version,
			Revision:   pv.Revision,
		})
	}
}

// nextVersionString bumps the minor component past every known version,
// so "1.1" with versions {1.1, 1.2} yields "1.3".
func nextVersionString(versions []types.VersionOption, current string) string {
	major, minor := splitVersion(current)
	maxMinor := minor
	for _, v := range versions {
		if vMajor, vMinor := splitVersion(v.Version); vMajor == major && vMinor > maxMinor {
			maxMinor = vMinor
		}
	}
	return fmt.Sprintf("%d.%d", major, maxMinor+1)
}

func splitVersion(version string) (major, minor int) {
	parts := strings.SplitN(version, ".", 2)
	major, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}

func writeRevisionMismatch(w http.ResponseWriter, r *http.Request, expected, stored int64) {
	writeError(w, r, http.StatusConflict, "REVISION_MISMATCH",
		fmt.Sprintf("Expected revision %d but property is at revision %d; reload and reapply your changes", expected, stored))
}

func storageErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Property version not found")
	case errors.Is(err, storage.ErrRevisionMismatch):
		writeError(w, r, http.StatusConflict, "REVISION_MISMATCH",
			"Expected revision no longer matches; reload and reapply your changes")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
