package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/proforma/internal/types"
)

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestGetVersion_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/properties/property-1/versions/1.1", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ok",
			"data": map[string]any{
				"propertyId": "property-1",
				"version":    "1.1",
				"revision":   2,
				"isLatest":   true,
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	pv, err := client.GetVersion(context.Background(), "property-1", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "property-1", pv.PropertyID)
	assert.Equal(t, "1.1", pv.Version)
	assert.Equal(t, int64(2), pv.Revision)
	assert.True(t, pv.IsLatest)
}

func TestGetVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/properties/property-1/versions", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{
				{"version": "1.1", "revision": 3, "isHistorical": true},
				{"version": "1.2", "revision": 0},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	versions, err := client.GetVersions(context.Background(), "property-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.1", versions[0].Version)
	assert.True(t, versions[0].IsHistorical)
	assert.Equal(t, int64(0), versions[1].Revision)
}

func TestSaveVersion_SendsPayloadAndReturnsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload types.SavePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, int64(2), payload.ExpectedRevision)

		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Property version saved",
			"data":    map[string]any{"propertyId": "property-1", "version": "1.1", "revision": 3},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	pv, message, err := client.SaveVersion(context.Background(), "property-1", "1.1", types.SavePayload{ExpectedRevision: 2})
	require.NoError(t, err)
	assert.Equal(t, "Property version saved", message)
	assert.Equal(t, int64(3), pv.Revision)
}

func TestUpdateBroker_CarriesExpectedRevisionQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/properties/property-1/versions/1.1/brokers/b1", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("expectedRevision"))
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"propertyId": "property-1", "version": "1.1", "revision": 3},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	pv, err := client.UpdateBroker(context.Background(), "property-1", "1.1", "b1", 2, types.BrokerPayload{
		Name: "Broker One", Phone: "1", Email: "one@example.com", Company: "A",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), pv.Revision)
}

func TestSoftDeleteTenant_UsesDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/properties/property-1/versions/1.1/tenants/t1", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"propertyId": "property-1", "version": "1.1", "revision": 3},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SoftDeleteTenant(context.Background(), "property-1", "1.1", "t1", 2)
	require.NoError(t, err)
}

func TestFailureEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, map[string]any{
			"success":    false,
			"message":    "Property version was modified by another user",
			"errorCode":  "REVISION_MISMATCH",
			"statusCode": 409,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, _, err := client.SaveVersion(context.Background(), "property-1", "1.1", types.SavePayload{ExpectedRevision: 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REVISION_MISMATCH", apiErr.ErrorCode)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, "Property version was modified by another user", apiErr.Message)
	assert.Equal(t, apiErr.Message, apiErr.Error())
}

func TestAPIError_DetailMessages(t *testing.T) {
	cases := []struct {
		name    string
		details string
		want    []string
	}{
		{"single string", `{"message":"Broker 1: Name is required"}`, []string{"Broker 1: Name is required"}},
		{"array", `{"message":["a","b"]}`, []string{"a", "b"}},
		{"no details", ``, nil},
		{"no message key", `{"other":1}`, nil},
		{"non-string message", `{"message":5}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := &APIError{Details: json.RawMessage(tc.details)}
			assert.Equal(t, tc.want, apiErr.DetailMessages())
		})
	}
}

func TestExtractErrorInfo(t *testing.T) {
	details, _ := json.Marshal(map[string]any{
		"message": []string{"Total tenant square footage must be <= property space"},
	})
	info := ExtractErrorInfo(&APIError{
		ErrorCode:  "VALIDATION_ERROR",
		StatusCode: 422,
		Message:    "Property draft failed validation",
		Details:    details,
	})
	assert.Equal(t, "Property draft failed validation", info.Message)
	assert.Equal(t, "Total tenant square footage must be <= property space", info.FieldErrors["tenants.squareFeet"])

	// Plain errors surface their text with no field mapping.
	info = ExtractErrorInfo(errors.New("connection refused"))
	assert.Equal(t, "connection refused", info.Message)
	assert.Empty(t, info.FieldErrors)

	info = ExtractErrorInfo(nil)
	assert.Equal(t, "", info.Message)
	assert.Empty(t, info.FieldErrors)
}
