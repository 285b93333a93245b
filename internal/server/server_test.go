package server

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/proforma/internal/draft"
	"github.com/matthewbaird/proforma/internal/storage"
	"github.com/matthewbaird/proforma/internal/transport"
	"github.com/matthewbaird/proforma/internal/types"
)

func serverFixture() *types.PropertyVersion {
	return &types.PropertyVersion{
		PropertyID:   "property-1",
		Version:      "1.1",
		Revision:     0,
		IsLatest:     true,
		IsHistorical: false,
		PropertyDetails: types.PropertyDetails{
			Address:        "504 N Ashe Ave",
			Market:         "Charlotte",
			PropertyType:   "Industrial",
			BuildingSizeSf: 1000,
		},
		UnderwritingInputs: types.UnderwritingInputs{
			EstStartDate:    "2025-01-01",
			HoldPeriodYears: 5,
		},
		Brokers: []types.Broker{
			{ID: "b1", Name: "Broker One", Phone: "1", Email: "one@example.com", Company: "A"},
		},
		Tenants: []types.Tenant{
			{
				ID: "t1", TenantName: "Tenant One", CreditType: "National", SquareFeet: 300,
				RentPsf: 20, LeaseStart: "2025-01-02", LeaseEnd: "2027-01-01", LeaseType: "NNN", Renew: "Yes",
			},
			{
				ID: types.VacantTenantID, TenantName: "VACANT", CreditType: "N/A", SquareFeet: 700,
				LeaseStart: "2025-01-02", LeaseEnd: "2027-01-01", IsVacant: true,
			},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.Repo, *WatchHub) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := storage.NewRepo(db)
	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, repo.InsertVersion(context.Background(), serverFixture()))

	hub := NewWatchHub()
	srv := httptest.NewServer(Router(repo, hub))
	t.Cleanup(srv.Close)
	return srv, repo, hub
}

func (h *WatchHub) watcherCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches)
}

func TestGetVersion_RoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	pv, err := client.GetVersion(context.Background(), "property-1", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "504 N Ashe Ave", pv.PropertyDetails.Address)
	assert.Equal(t, int64(0), pv.Revision)

	_, err = client.GetVersion(context.Background(), "property-1", "9.9")
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.ErrorCode)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestSaveVersion_BumpsRevision(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	current := serverFixture()
	current.PropertyDetails.Market = "Raleigh"
	payload := types.SavePayload{
		ExpectedRevision:   0,
		PropertyDetails:    current.PropertyDetails,
		UnderwritingInputs: current.UnderwritingInputs,
		Brokers:            current.Brokers,
		Tenants:            current.Tenants,
	}

	saved, message, err := client.SaveVersion(context.Background(), "property-1", "1.1", payload)
	require.NoError(t, err)
	assert.Equal(t, "Property version 1.1 saved", message)
	assert.Equal(t, int64(1), saved.Revision)

	stored, err := repo.GetVersion(context.Background(), "property-1", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "Raleigh", stored.PropertyDetails.Market)
	assert.Equal(t, int64(1), stored.Revision)
}

func TestSaveVersion_StaleRevisionConflict(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	current := serverFixture()
	payload := types.SavePayload{
		ExpectedRevision:   7,
		PropertyDetails:    current.PropertyDetails,
		UnderwritingInputs: current.UnderwritingInputs,
		Brokers:            current.Brokers,
		Tenants:            current.Tenants,
	}

	_, _, err := client.SaveVersion(context.Background(), "property-1", "1.1", payload)
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REVISION_MISMATCH", apiErr.ErrorCode)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestSaveVersion_ValidationRejected(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	current := serverFixture()
	current.Tenants[0].SquareFeet = 2000
	payload := types.SavePayload{
		ExpectedRevision:   0,
		PropertyDetails:    current.PropertyDetails,
		UnderwritingInputs: current.UnderwritingInputs,
		Brokers:            current.Brokers,
		Tenants:            current.Tenants,
	}

	_, _, err := client.SaveVersion(context.Background(), "property-1", "1.1", payload)
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.ErrorCode)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.DetailMessages(), "Total tenant square footage must be <= property space")

	// Nothing was written.
	stored, err := repo.GetVersion(context.Background(), "property-1", "1.1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Revision)
}

func TestSaveVersion_HistoricalReadOnly(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	historical := serverFixture()
	historical.IsLatest = false
	historical.IsHistorical = true
	require.NoError(t, repo.UpdateVersion(context.Background(), historical, 0))

	payload := types.SavePayload{
		ExpectedRevision:   0,
		PropertyDetails:    historical.PropertyDetails,
		UnderwritingInputs: historical.UnderwritingInputs,
		Brokers:            historical.Brokers,
		Tenants:            historical.Tenants,
	}
	_, _, err := client.SaveVersion(context.Background(), "property-1", "1.1", payload)
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HISTORICAL_READONLY", apiErr.ErrorCode)
}

func TestSaveAs_CreatesNextVersionAndRetiresCurrent(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	current := serverFixture()
	payload := types.SavePayload{
		ExpectedRevision:   0,
		PropertyDetails:    current.PropertyDetails,
		UnderwritingInputs: current.UnderwritingInputs,
		Brokers:            current.Brokers,
		Tenants:            current.Tenants,
	}

	next, message, err := client.SaveAs(context.Background(), "property-1", "1.1", payload)
	require.NoError(t, err)
	assert.Equal(t, "Property saved as version 1.2", message)
	assert.Equal(t, "1.2", next.Version)
	assert.Equal(t, int64(0), next.Revision)
	assert.True(t, next.IsLatest)

	retired, err := repo.GetVersion(context.Background(), "property-1", "1.1")
	require.NoError(t, err)
	assert.True(t, retired.IsHistorical)
	assert.False(t, retired.IsLatest)

	versions, err := client.GetVersions(context.Background(), "property-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.1", versions[0].Version)
	assert.True(t, versions[0].IsHistorical)
	assert.Equal(t, "1.2", versions[1].Version)
}

func TestCreateBroker_ServerIssuesID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	saved, err := client.CreateBroker(context.Background(), "property-1", "1.1", 0, types.BrokerPayload{
		Name: "New Broker", Phone: "555-0100", Email: "nb@example.com", Company: "NewCo",
	})
	require.NoError(t, err)
	require.Len(t, saved.Brokers, 2)
	assert.True(t, strings.HasPrefix(saved.Brokers[1].ID, "broker-"))
	assert.Equal(t, int64(1), saved.Revision)
}

func TestCreateBroker_PayloadValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	_, err := client.CreateBroker(context.Background(), "property-1", "1.1", 0, types.BrokerPayload{
		Name: "No Contact", Phone: "call me", Email: "nope", Company: "X",
	})
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.ErrorCode)
	assert.Contains(t, apiErr.DetailMessages(), "Enter a valid phone number")
	assert.Contains(t, apiErr.DetailMessages(), "Enter a valid email address")
}

func TestCreateTenant_InsertsBeforeVacantRow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	saved, err := client.CreateTenant(context.Background(), "property-1", "1.1", 0, types.TenantPayload{
		TenantName: "New Tenant", SquareFeet: 100, LeaseStart: "2025-02-01", LeaseEnd: "2026-02-01",
	})
	require.NoError(t, err)
	require.Len(t, saved.Tenants, 3)
	assert.Equal(t, "New Tenant", saved.Tenants[1].TenantName)
	assert.True(t, strings.HasPrefix(saved.Tenants[1].ID, "tenant-"))
	assert.True(t, saved.Tenants[2].IsVacant, "vacant row stays last")
}

func TestVacantRowMutationsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := transport.NewClient(srv.URL, nil)

	_, err := client.UpdateTenant(context.Background(), "property-1", "1.1", types.VacantTenantID, 0, types.TenantPayload{
		TenantName: "Sneaky", LeaseStart: "2025-01-02", LeaseEnd: "2026-01-01",
	})
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VACANT_ROW_MANAGED", apiErr.ErrorCode)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = client.SoftDeleteTenant(context.Background(), "property-1", "1.1", types.VacantTenantID, 0)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VACANT_ROW_MANAGED", apiErr.ErrorCode)
}

func TestEntityMutation_RequiresRevisionParam(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/properties/property-1/versions/1.1/brokers/b1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWatch_BroadcastsRevisionUpdates(t *testing.T) {
	srv, _, hub := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL+"/api/watch", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.watcherCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	client := transport.NewClient(srv.URL, nil)
	_, err = client.SoftDeleteBroker(ctx, "property-1", "1.1", "b1", 0)
	require.NoError(t, err)

	var update RevisionUpdate
	require.NoError(t, wsjson.Read(ctx, conn, &update))
	assert.Equal(t, "property-1", update.PropertyID)
	assert.Equal(t, "1.1", update.Version)
	assert.Equal(t, int64(1), update.Revision)
}

// TestStoreEndToEnd drives the draft store through the HTTP client
// against the real router: edit, conflict, reload, save.
func TestStoreEndToEnd(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	clientA := transport.NewClient(srv.URL, nil)
	clientB := transport.NewClient(srv.URL, nil)
	storeA := draft.NewStore("property-1", clientA)
	storeB := draft.NewStore("property-1", clientB)

	_, err := storeA.LoadVersion(ctx, "1.1")
	require.NoError(t, err)
	_, err = storeB.LoadVersion(ctx, "1.1")
	require.NoError(t, err)

	// B wins the race.
	storeB.UpdatePropertyDetailsField("market", func(pd *types.PropertyDetails) { pd.Market = "Durham" })
	_, _, err = storeB.SaveCurrent(ctx)
	require.NoError(t, err)

	// A's save now carries a stale revision.
	storeA.UpdatePropertyDetailsField("market", func(pd *types.PropertyDetails) { pd.Market = "Raleigh" })
	_, _, err = storeA.SaveCurrent(ctx)
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REVISION_MISMATCH", apiErr.ErrorCode)
	assert.True(t, storeA.HasUnsavedChanges(), "failed save keeps the draft dirty")

	// Reload and reapply.
	_, err = storeA.LoadVersion(ctx, "1.1")
	require.NoError(t, err)
	assert.Equal(t, "Durham", storeA.Draft().Get().PropertyDetails.Market)
	storeA.UpdatePropertyDetailsField("market", func(pd *types.PropertyDetails) { pd.Market = "Raleigh" })
	saved, _, err := storeA.SaveCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Revision)
	assert.False(t, storeA.HasUnsavedChanges())
}
