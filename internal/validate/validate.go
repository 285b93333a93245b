// Package validate implements domain validation for a property draft.
// Validation is a pure function over the aggregate: it returns an ordered
// list of human-readable violations, empty when the draft is valid. The
// message patterns ("Broker {n}: …", "Tenant {n}: …", bare sentences for
// aggregate rules) are load-bearing — the field-error mapper resolves them
// back to field paths by substring matching, so changes here must be
// coordinated with internal/fielderr.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matthewbaird/proforma/internal/types"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9+\-()\s]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// dateLayouts accepted for lease and underwriting dates.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate parses a date string in any accepted layout.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidDate reports whether value parses as a calendar date.
func ValidDate(value string) bool {
	_, ok := ParseDate(value)
	return ok
}

// ValidPhone reports whether value matches the permissive phone pattern.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(value)
}

// ValidEmail reports whether value is a syntactically plausible address.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func brokerViolations(b types.Broker, n int, errs []string) []string {
	if b.ID == "" {
		errs = append(errs, fmt.Sprintf("Broker %d: Internal ID is missing", n))
	}
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, fmt.Sprintf("Broker %d: Name is required", n))
	}
	if strings.TrimSpace(b.Phone) == "" {
		errs = append(errs, fmt.Sprintf("Broker %d: Phone number is required", n))
	} else if !ValidPhone(b.Phone) {
		errs = append(errs, fmt.Sprintf("Broker %d: Enter a valid phone number", n))
	}
	if strings.TrimSpace(b.Company) == "" {
		errs = append(errs, fmt.Sprintf("Broker %d: Company name is required", n))
	}
	if strings.TrimSpace(b.Email) == "" {
		errs = append(errs, fmt.Sprintf("Broker %d: Email address is required", n))
	} else if !ValidEmail(b.Email) {
		errs = append(errs, fmt.Sprintf("Broker %d: Enter a valid email address", n))
	}
	return errs
}

func tenantViolations(t types.Tenant, n int, errs []string) []string {
	if t.ID == "" {
		errs = append(errs, fmt.Sprintf("Tenant %d: Internal ID is missing", n))
	}
	if strings.TrimSpace(t.TenantName) == "" {
		errs = append(errs, fmt.Sprintf("Tenant %d: Tenant name is required", n))
	}
	if t.SquareFeet < 0 {
		errs = append(errs, fmt.Sprintf("Tenant %d: Square feet must be 0 or more", n))
	}
	if t.RentPsf < 0 || t.AnnualEscalations < 0 || t.TiPsf < 0 || t.LcPsf < 0 {
		errs = append(errs, fmt.Sprintf("Tenant %d: Rent, escalation, TI and LC values must be 0 or more", n))
	}
	if t.DowntimeMonths < 0 {
		errs = append(errs, fmt.Sprintf("Tenant %d: Downtime must be 0 or more", n))
	}
	if !ValidDate(t.LeaseStart) || !ValidDate(t.LeaseEnd) {
		errs = append(errs, fmt.Sprintf("Tenant %d: Lease start and lease end must be valid dates", n))
	}
	return errs
}

// Draft evaluates every domain rule against the draft and returns the
// violations in evaluation order. Broker and tenant rules number records
// by their 1-based position among active (non-deleted, non-vacant) rows.
func Draft(draft *types.PropertyVersion) []string {
	errs := []string{}

	if strings.TrimSpace(draft.PropertyDetails.Address) == "" {
		errs = append(errs, "Property address is required")
	}
	if draft.PropertyDetails.BuildingSizeSf <= 0 {
		errs = append(errs, "Building Size (SF) must be greater than 0")
	}
	if !ValidDate(draft.UnderwritingInputs.EstStartDate) {
		errs = append(errs, "Est Start Date is invalid")
	}
	if draft.UnderwritingInputs.HoldPeriodYears <= 0 {
		errs = append(errs, "Hold Period (Yrs) must be greater than 0")
	}

	activeBrokers := draft.ActiveBrokers()
	seenBrokerIDs := make(map[string]bool, len(activeBrokers))
	dupBroker := false
	for _, b := range activeBrokers {
		if seenBrokerIDs[b.ID] {
			dupBroker = true
		}
		seenBrokerIDs[b.ID] = true
	}
	if dupBroker {
		errs = append(errs, "Broker IDs must be unique")
	}
	for i, b := range activeBrokers {
		errs = brokerViolations(b, i+1, errs)
	}

	activeTenants := draft.ActiveTenants()
	seenTenantIDs := make(map[string]bool, len(activeTenants))
	dupTenant := false
	for _, t := range activeTenants {
		if seenTenantIDs[t.ID] {
			dupTenant = true
		}
		seenTenantIDs[t.ID] = true
	}
	if dupTenant {
		errs = append(errs, "Tenant IDs must be unique for non-vacant rows")
	}

	for _, t := range draft.Tenants {
		if t.ID == types.VacantTenantID && !t.IsVacant {
			errs = append(errs, "Vacant row is system-managed and cannot be modified directly")
			break
		}
	}

	for i, t := range activeTenants {
		errs = tenantViolations(t, i+1, errs)
	}

	var totalSqFt float64
	for _, t := range activeTenants {
		totalSqFt += t.SquareFeet
	}
	if totalSqFt > draft.PropertyDetails.BuildingSizeSf {
		errs = append(errs, "Total tenant square footage must be <= property space")
	}

	propertyStart, startOK := ParseDate(draft.UnderwritingInputs.EstStartDate)
	for i, t := range activeTenants {
		leaseStart, ok1 := ParseDate(t.LeaseStart)
		leaseEnd, ok2 := ParseDate(t.LeaseEnd)
		if !ok1 || !ok2 {
			continue
		}
		// Fractional hold periods truncate to whole years.
		maxLeaseEnd := leaseStart.AddDate(int(draft.UnderwritingInputs.HoldPeriodYears), 0, 0)

		if startOK && leaseStart.Before(propertyStart) {
			errs = append(errs, fmt.Sprintf("Tenant %d: Lease start date cannot be before Est Start Date", i+1))
		}
		if leaseEnd.After(maxLeaseEnd) {
			errs = append(errs, fmt.Sprintf("Tenant %d: Lease end date cannot exceed lease start + hold period", i+1))
		}
	}

	return errs
}
