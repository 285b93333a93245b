package draft

import (
	"errors"
	"strings"
)

// Precondition failures raised before any network call. The texts are
// part of the store's contract with the rendering layer, which shows
// them verbatim.
var (
	ErrNotLoaded            = errors.New("Property not loaded")
	ErrBrokerNotFound       = errors.New("Broker not found")
	ErrBrokerNotInDraft     = errors.New("Broker not found in draft")
	ErrTenantNotFound       = errors.New("Tenant not found")
	ErrTenantNotInDraft     = errors.New("Tenant not found in draft")
	ErrVacantRowManaged     = errors.New("Vacant row is system-managed and cannot be modified directly")
	ErrBrokerFieldsRequired = errors.New("Broker name, phone, email and company are required")
	ErrTenantNameRequired   = errors.New("Tenant name is required")
)

// ValidationError reports that a full save was refused because the
// draft violates one or more domain rules. Violations keep their
// evaluation order.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, " | ")
}
