package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matthewbaird/proforma/internal/storage"
	"github.com/matthewbaird/proforma/internal/types"
	"github.com/matthewbaird/proforma/internal/validate"
)

// EntityHandler serves the per-entity broker and tenant mutations. Each
// operation loads the aggregate, applies one change, bumps the revision,
// and writes behind the optimistic concurrency check. The full updated
// aggregate is returned so clients can reconcile.
type EntityHandler struct {
	repo *storage.Repo
	hub  *WatchHub
}

// NewEntityHandler creates a handler over the repository.
func NewEntityHandler(repo *storage.Repo, hub *WatchHub) *EntityHandler {
	return &EntityHandler{repo: repo, hub: hub}
}

// loadForWrite fetches the aggregate and runs the shared write
// preconditions: version exists, is editable, and the expected revision
// still matches.
func (h *EntityHandler) loadForWrite(w http.ResponseWriter, r *http.Request) (*types.PropertyVersion, int64, bool) {
	expectedRevision, ok := parseExpectedRevision(w, r)
	if !ok {
		return nil, 0, false
	}
	propertyID := chi.URLParam(r, "propertyID")
	version := chi.URLParam(r, "version")

	stored, err := h.repo.GetVersion(r.Context(), propertyID, version)
	if err != nil {
		storageErrorToHTTP(w, r, err)
		return nil, 0, false
	}
	if stored.IsHistorical {
		writeError(w, r, http.StatusConflict, "HISTORICAL_READONLY", "Historical versions are read-only")
		return nil, 0, false
	}
	if expectedRevision != stored.Revision {
		writeRevisionMismatch(w, r, expectedRevision, stored.Revision)
		return nil, 0, false
	}
	return stored, expectedRevision, true
}

// commit bumps the revision, writes the aggregate, and answers with the
// full updated document.
func (h *EntityHandler) commit(w http.ResponseWriter, r *http.Request, next *types.PropertyVersion, expectedRevision int64, status int, message string) {
	next.Revision = expectedRevision + 1
	if err := h.repo.UpdateVersion(r.Context(), next, expectedRevision); err != nil {
		storageErrorToHTTP(w, r, err)
		return
	}
	if h.hub != nil {
		h.hub.Broadcast(RevisionUpdate{
			PropertyID: next.PropertyID,
			Version:    next.Version,
			Revision:   next.Revision,
		})
	}
	writeData(w, r, status, message, next)
}

// CreateBroker appends a broker with a server-issued id.
func (h *EntityHandler) CreateBroker(w http.ResponseWriter, r *http.Request) {
	var payload types.BrokerPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if msgs := brokerPayloadViolations(payload); len(msgs) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Broker failed validation", msgs...)
		return
	}

	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	next := stored.Clone()
	next.Brokers = append(next.Brokers, types.Broker{
		ID:      "broker-" + uuid.NewString(),
		Name:    payload.Name,
		Phone:   payload.Phone,
		Email:   payload.Email,
		Company: payload.Company,
	})
	h.commit(w, r, next, expectedRevision, http.StatusCreated, "Broker created")
}

// UpdateBroker replaces a broker's editable fields.
func (h *EntityHandler) UpdateBroker(w http.ResponseWriter, r *http.Request) {
	var payload types.BrokerPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if msgs := brokerPayloadViolations(payload); len(msgs) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Broker failed validation", msgs...)
		return
	}

	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	next := stored.Clone()
	broker := next.FindBroker(chi.URLParam(r, "brokerID"))
	if broker == nil || broker.IsDeleted {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Broker not found")
		return
	}
	broker.Name = payload.Name
	broker.Phone = payload.Phone
	broker.Email = payload.Email
	broker.Company = payload.Company
	h.commit(w, r, next, expectedRevision, http.StatusOK, "Broker updated")
}

// SoftDeleteBroker marks a broker deleted; the row stays in the
// collection.
func (h *EntityHandler) SoftDeleteBroker(w http.ResponseWriter, r *http.Request) {
	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	next := stored.Clone()
	broker := next.FindBroker(chi.URLParam(r, "brokerID"))
	if broker == nil || broker.IsDeleted {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Broker not found")
		return
	}
	broker.IsDeleted = true
	h.commit(w, r, next, expectedRevision, http.StatusOK, "Broker deleted")
}

// CreateTenant inserts a tenant before the vacant row so the vacant row
// stays last.
func (h *EntityHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var payload types.TenantPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if msgs := tenantPayloadViolations(payload); len(msgs) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Tenant failed validation", msgs...)
		return
	}

	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	tenant := tenantFromPayload(payload)
	tenant.ID = "tenant-" + uuid.NewString()

	next := stored.Clone()
	var active, vacant []types.Tenant
	for _, t := range next.Tenants {
		if t.IsVacant {
			vacant = append(vacant, t)
		} else {
			active = append(active, t)
		}
	}
	next.Tenants = append(append(active, tenant), vacant...)
	h.commit(w, r, next, expectedRevision, http.StatusCreated, "Tenant created")
}

// UpdateTenant replaces a tenant's editable fields. The vacant row is
// refused.
func (h *EntityHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == types.VacantTenantID {
		writeVacantRowError(w, r)
		return
	}

	var payload types.TenantPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if msgs := tenantPayloadViolations(payload); len(msgs) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Tenant failed validation", msgs...)
		return
	}

	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	next := stored.Clone()
	tenant := next.FindTenant(tenantID)
	if tenant == nil || tenant.IsDeleted || tenant.IsVacant {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Tenant not found")
		return
	}
	applyTenantPayload(tenant, payload)
	h.commit(w, r, next, expectedRevision, http.StatusOK, "Tenant updated")
}

// SoftDeleteTenant marks a tenant deleted. The vacant row is refused.
func (h *EntityHandler) SoftDeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == types.VacantTenantID {
		writeVacantRowError(w, r)
		return
	}

	stored, expectedRevision, ok := h.loadForWrite(w, r)
	if !ok {
		return
	}

	next := stored.Clone()
	tenant := next.FindTenant(tenantID)
	if tenant == nil || tenant.IsDeleted || tenant.IsVacant {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Tenant not found")
		return
	}
	tenant.IsDeleted = true
	h.commit(w, r, next, expectedRevision, http.StatusOK, "Tenant deleted")
}

func writeVacantRowError(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusBadRequest, "VACANT_ROW_MANAGED",
		"Vacant row is system-managed and cannot be modified directly")
}

func brokerPayloadViolations(p types.BrokerPayload) []string {
	var msgs []string
	if p.Name == "" {
		msgs = append(msgs, "Name is required")
	}
	if p.Phone == "" {
		msgs = append(msgs, "Phone number is required")
	} else if !validate.ValidPhone(p.Phone) {
		msgs = append(msgs, "Enter a valid phone number")
	}
	if p.Company == "" {
		msgs = append(msgs, "Company name is required")
	}
	if p.Email == "" {
		msgs = append(msgs, "Email address is required")
	} else if !validate.ValidEmail(p.Email) {
		msgs = append(msgs, "Enter a valid email address")
	}
	return msgs
}

func tenantPayloadViolations(p types.TenantPayload) []string {
	var msgs []string
	if p.TenantName == "" {
		msgs = append(msgs, "Tenant name is required")
	}
	if p.SquareFeet < 0 {
		msgs = append(msgs, "Square feet must be 0 or more")
	}
	if p.RentPsf < 0 || p.AnnualEscalations < 0 || p.TiPsf < 0 || p.LcPsf < 0 {
		msgs = append(msgs, "Rent, escalation, TI and LC values must be 0 or more")
	}
	if p.DowntimeMonths < 0 {
		msgs = append(msgs, "Downtime must be 0 or more")
	}
	if !validate.ValidDate(p.LeaseStart) || !validate.ValidDate(p.LeaseEnd) {
		msgs = append(msgs, "Lease start and lease end must be valid dates")
	}
	return msgs
}

func tenantFromPayload(p types.TenantPayload) types.Tenant {
	var t types.Tenant
	applyTenantPayload(&t, p)
	return t
}

func applyTenantPayload(t *types.Tenant, p types.TenantPayload) {
	t.TenantName = p.TenantName
	t.CreditType = p.CreditType
	t.SquareFeet = p.SquareFeet
	t.RentPsf = p.RentPsf
	t.AnnualEscalations = p.AnnualEscalations
	t.LeaseStart = p.LeaseStart
	t.LeaseEnd = p.LeaseEnd
	t.LeaseType = p.LeaseType
	t.Renew = p.Renew
	t.DowntimeMonths = p.DowntimeMonths
	t.TiPsf = p.TiPsf
	t.LcPsf = p.LcPsf
}
