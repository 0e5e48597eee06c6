// Package nightscout provides the REST side channel to the server: the
// startup status probe and token re-authorization. Live data flows over the
// sync transport, not through this client.
package nightscout

import (
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ServerStatus is the server's status response, carrying the settings the
// client adopts at startup.
type ServerStatus struct {
	Status     string          `json:"status"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	ServerTime string          `json:"serverTime"`
	APIEnabled bool            `json:"apiEnabled"`
	Head       string          `json:"head"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

// Authorization is the server's answer to an authorization request.
type Authorization struct {
	Token            string     `json:"token"`
	Exp              int64      `json:"exp"` // unix seconds
	Iat              int64      `json:"iat"` // unix seconds
	Read             bool       `json:"read"`
	PermissionGroups [][]string `json:"permissionGroups,omitempty"`
}

// Client handles REST communication with the server.
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a new REST client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// SecretHash returns the hash sent as the api-secret credential, or "" when
// no secret is configured.
func (c *Client) SecretHash() string {
	if c.apiSecret == "" {
		return ""
	}
	return hashSecret(c.apiSecret)
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(method, endpoint string, params url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequest(method, fullURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// GetStatus retrieves the server status
func (c *Client) GetStatus() (*ServerStatus, error) {
	req, err := c.buildRequest("GET", "/api/v1/status", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return &status, nil
}

// RequestAuthorization exchanges a token for a fresh authorization.
func (c *Client) RequestAuthorization(token string) (*Authorization, error) {
	req, err := c.buildRequest("GET", "/api/v2/authorization/request/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var auth Authorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("parsing authorization: %w", err)
	}

	return &auth, nil
}

// TestConnection tests if the connection to the server works
func (c *Client) TestConnection() error {
	_, err := c.GetStatus()
	return err
}
