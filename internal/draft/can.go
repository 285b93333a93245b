package draft

import (
	"github.com/matthewbaird/proforma/internal/types"
	"github.com/matthewbaird/proforma/internal/validate"
)

// Read-only predicates driving UI affordances. Each reproduces exactly
// the checks its save-time counterpart enforces, plus a changed-since-
// persisted comparison so a button is only enabled when the save would
// do something and would not immediately fail.

// CanAddBrokerOrTenant reports whether draft rows may be added: an
// aggregate is loaded and it is not a historical version.
func (s *Store) CanAddBrokerOrTenant() bool {
	current := s.draftSig.Get()
	return current != nil && !current.IsHistorical
}

// CanSaveBroker reports whether SaveBroker would currently succeed
// validation and change persisted state.
func (s *Store) CanSaveBroker(brokerID string) bool {
	current := s.draftSig.Get()
	if current == nil || current.IsHistorical {
		return false
	}
	broker := current.FindBroker(brokerID)
	if broker == nil || broker.IsDeleted {
		return false
	}

	payload := broker.Sanitize()
	if payload.Name == "" || payload.Phone == "" || payload.Email == "" || payload.Company == "" {
		return false
	}
	if !validate.ValidPhone(payload.Phone) || !validate.ValidEmail(payload.Email) {
		return false
	}

	if s.isClientOnlyBroker(brokerID) {
		return true
	}

	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()
	if persisted == nil {
		return false
	}
	persistedBroker := persisted.FindBroker(brokerID)
	if persistedBroker == nil {
		return false
	}
	return payload != persistedBroker.Sanitize()
}

// CanDeleteBroker reports whether the broker exists and is not already
// deleted on an editable version.
func (s *Store) CanDeleteBroker(brokerID string) bool {
	current := s.draftSig.Get()
	if current == nil || current.IsHistorical {
		return false
	}
	broker := current.FindBroker(brokerID)
	return broker != nil && !broker.IsDeleted
}

// CanSaveTenant reports whether SaveTenant would currently succeed
// validation and change persisted state. The vacant row is never
// saveable.
func (s *Store) CanSaveTenant(tenantID string) bool {
	current := s.draftSig.Get()
	if current == nil || current.IsHistorical || tenantID == types.VacantTenantID {
		return false
	}
	tenant := current.FindTenant(tenantID)
	if tenant == nil || tenant.IsDeleted || tenant.IsVacant {
		return false
	}

	payload := tenant.Sanitize()
	if payload.TenantName == "" {
		return false
	}

	if s.isClientOnlyTenant(tenantID) {
		return true
	}

	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()
	if persisted == nil {
		return false
	}
	persistedTenant := persisted.FindTenant(tenantID)
	if persistedTenant == nil {
		return false
	}
	return payload != persistedTenant.Sanitize()
}

// CanDeleteTenant reports whether the tenant exists, is active, and is
// not the vacant row on an editable version.
func (s *Store) CanDeleteTenant(tenantID string) bool {
	current := s.draftSig.Get()
	if current == nil || current.IsHistorical || tenantID == types.VacantTenantID {
		return false
	}
	tenant := current.FindTenant(tenantID)
	return tenant != nil && !tenant.IsDeleted && !tenant.IsVacant
}
