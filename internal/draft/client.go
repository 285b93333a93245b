package draft

import (
	"context"

	"github.com/matthewbaird/proforma/internal/types"
)

// Client is the transport collaborator the store saves and loads
// through. internal/transport provides the HTTP implementation; tests
// substitute an in-memory fake. Mutation operations return the full
// aggregate the server now holds; full saves additionally surface the
// server's confirmation message.
type Client interface {
	GetVersions(ctx context.Context, propertyID string) ([]types.VersionOption, error)
	GetVersion(ctx context.Context, propertyID, version string) (*types.PropertyVersion, error)
	SaveVersion(ctx context.Context, propertyID, version string, payload types.SavePayload) (*types.PropertyVersion, string, error)
	SaveAs(ctx context.Context, propertyID, version string, payload types.SavePayload) (*types.PropertyVersion, string, error)
	CreateBroker(ctx context.Context, propertyID, version string, expectedRevision int64, payload types.BrokerPayload) (*types.PropertyVersion, error)
	UpdateBroker(ctx context.Context, propertyID, version, brokerID string, expectedRevision int64, payload types.BrokerPayload) (*types.PropertyVersion, error)
	SoftDeleteBroker(ctx context.Context, propertyID, version, brokerID string, expectedRevision int64) (*types.PropertyVersion, error)
	CreateTenant(ctx context.Context, propertyID, version string, expectedRevision int64, payload types.TenantPayload) (*types.PropertyVersion, error)
	UpdateTenant(ctx context.Context, propertyID, version, tenantID string, expectedRevision int64, payload types.TenantPayload) (*types.PropertyVersion, error)
	SoftDeleteTenant(ctx context.Context, propertyID, version, tenantID string, expectedRevision int64) (*types.PropertyVersion, error)
}
