package draft

import (
	"strings"

	"github.com/google/uuid"

	"github.com/matthewbaird/proforma/internal/types"
)

// Transient ids mark rows that exist only in the draft. A transient
// prefix alone does not make an id client-only: legacy records created
// before the id scheme changed can carry temp-prefixed ids server-side,
// and those must route to update operations. Client-only therefore also
// requires absence from the persisted snapshot.
const (
	transientBrokerPrefix = "temp-broker"
	transientTenantPrefix = "temp-tenant"
)

func generateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func isTransientID(id string) bool {
	return strings.HasPrefix(id, "temp-")
}

func isClientOnlyBrokerID(id string, persisted *types.PropertyVersion) bool {
	if !isTransientID(id) {
		return false
	}
	return persisted == nil || persisted.FindBroker(id) == nil
}

func isClientOnlyTenantID(id string, persisted *types.PropertyVersion) bool {
	if !isTransientID(id) {
		return false
	}
	return persisted == nil || persisted.FindTenant(id) == nil
}

// materializeTransientIDs returns broker and tenant collections where
// every client-only id has been replaced with a freshly minted persistent
// id, collision-checked against all ids already in the draft. The bulk
// save endpoint never receives a client-minted transient identifier. The
// vacant row is exempt. The draft itself is left untouched; the server
// response replaces it after the save lands.
func materializeTransientIDs(current, persisted *types.PropertyVersion) ([]types.Broker, []types.Tenant) {
	brokerIDs := make(map[string]bool, len(current.Brokers))
	for _, b := range current.Brokers {
		brokerIDs[b.ID] = true
	}
	tenantIDs := make(map[string]bool, len(current.Tenants))
	for _, t := range current.Tenants {
		tenantIDs[t.ID] = true
	}

	brokers := append([]types.Broker(nil), current.Brokers...)
	for i := range brokers {
		if !isClientOnlyBrokerID(brokers[i].ID, persisted) {
			continue
		}
		next := generateID("broker")
		for brokerIDs[next] {
			next = generateID("broker")
		}
		brokerIDs[next] = true
		brokers[i].ID = next
	}

	tenants := append([]types.Tenant(nil), current.Tenants...)
	for i := range tenants {
		if tenants[i].IsVacant || !isClientOnlyTenantID(tenants[i].ID, persisted) {
			continue
		}
		next := generateID("tenant")
		for tenantIDs[next] {
			next = generateID("tenant")
		}
		tenantIDs[next] = true
		tenants[i].ID = next
	}

	return brokers, tenants
}
