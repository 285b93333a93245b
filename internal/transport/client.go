// Package transport implements the HTTP client for the property API.
// Success responses arrive wrapped in {success:true, message, path,
// timestamp, data}; failures in {success:false, message, errorCode,
// statusCode, details} and are surfaced as *APIError.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matthewbaird/proforma/internal/types"
)

// Client talks to one property API base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. httpClient may be nil, in which case a
// client with a 30s timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	ErrorCode  string          `json:"errorCode"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Details    json.RawMessage `json:"details"`
}

// do issues a request and unwraps the envelope, decoding data into out.
// The envelope message is returned for mutation callers.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (string, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		status := env.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		return "", &APIError{
			ErrorCode:  env.ErrorCode,
			StatusCode: status,
			Message:    env.Message,
			Details:    env.Details,
		}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decoding response data: %w", err)
		}
	}
	return env.Message, nil
}

func (c *Client) versionPath(propertyID, version string) string {
	return "/api/properties/" + url.PathEscape(propertyID) + "/versions/" + url.PathEscape(version)
}

func revisionQuery(expectedRevision int64) string {
	return "?expectedRevision=" + strconv.FormatInt(expectedRevision, 10)
}

// GetVersions fetches the version summaries for a property.
func (c *Client) GetVersions(ctx context.Context, propertyID string) ([]types.VersionOption, error) {
	var versions []types.VersionOption
	path := "/api/properties/" + url.PathEscape(propertyID) + "/versions"
	if _, err := c.do(ctx, http.MethodGet, path, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersion fetches one aggregate snapshot.
func (c *Client) GetVersion(ctx context.Context, propertyID, version string) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	if _, err := c.do(ctx, http.MethodGet, c.versionPath(propertyID, version), nil, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// SaveVersion persists the full aggregate against the expected revision.
func (c *Client) SaveVersion(ctx context.Context, propertyID, version string, payload types.SavePayload) (*types.PropertyVersion, string, error) {
	var pv types.PropertyVersion
	msg, err := c.do(ctx, http.MethodPut, c.versionPath(propertyID, version), payload, &pv)
	if err != nil {
		return nil, "", err
	}
	return &pv, msg, nil
}

// SaveAs persists the aggregate as a new version.
func (c *Client) SaveAs(ctx context.Context, propertyID, version string, payload types.SavePayload) (*types.PropertyVersion, string, error) {
	var pv types.PropertyVersion
	msg, err := c.do(ctx, http.MethodPost, c.versionPath(propertyID, version)+"/save-as", payload, &pv)
	if err != nil {
		return nil, "", err
	}
	return &pv, msg, nil
}

// CreateBroker adds a broker to the version; the server issues the id.
func (c *Client) CreateBroker(ctx context.Context, propertyID, version string, expectedRevision int64, payload types.BrokerPayload) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/brokers" + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodPost, path, payload, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// UpdateBroker replaces a broker's editable fields.
func (c *Client) UpdateBroker(ctx context.Context, propertyID, version, brokerID string, expectedRevision int64, payload types.BrokerPayload) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/brokers/" + url.PathEscape(brokerID) + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodPut, path, payload, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// SoftDeleteBroker marks a broker deleted; the row stays in the
// collection.
func (c *Client) SoftDeleteBroker(ctx context.Context, propertyID, version, brokerID string, expectedRevision int64) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/brokers/" + url.PathEscape(brokerID) + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// CreateTenant adds a tenant row before the vacant row.
func (c *Client) CreateTenant(ctx context.Context, propertyID, version string, expectedRevision int64, payload types.TenantPayload) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/tenants" + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodPost, path, payload, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// UpdateTenant replaces a tenant's editable fields.
func (c *Client) UpdateTenant(ctx context.Context, propertyID, version, tenantID string, expectedRevision int64, payload types.TenantPayload) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/tenants/" + url.PathEscape(tenantID) + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodPut, path, payload, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// SoftDeleteTenant marks a tenant deleted.
func (c *Client) SoftDeleteTenant(ctx context.Context, propertyID, version, tenantID string, expectedRevision int64) (*types.PropertyVersion, error) {
	var pv types.PropertyVersion
	path := c.versionPath(propertyID, version) + "/tenants/" + url.PathEscape(tenantID) + revisionQuery(expectedRevision)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}
