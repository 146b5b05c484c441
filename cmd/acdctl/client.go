package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

type acdClient struct {
	baseURL string
	role    string
	http    *http.Client
}

func newClient() *acdClient {
	return &acdClient{
		baseURL: serverURL,
		role:    role,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
	// Set on 409 responses.
	ExistingProjectID string `json:"existing_project_id"`
	// Set on 403 responses.
	AllowedRoles []string `json:"allowed_roles"`
	// Set on rejected status transitions.
	Allowed []string `json:"allowed"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.ExistingProjectID != "" {
		msg += " (owned by " + e.ExistingProjectID + ")"
	}
	if len(e.AllowedRoles) > 0 {
		msg += " (allowed roles: " + strings.Join(e.AllowedRoles, ", ") + ")"
	}
	if len(e.Allowed) > 0 {
		msg += " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

func (c *acdClient) do(method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.role != "" {
		req.Header.Set(authz.RoleHeader, c.role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &apiError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return nil, apiErr
	}
	return resp, nil
}

// getJSON performs a GET request and decodes the response.
func (c *acdClient) getJSON(path string, v any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *acdClient) postJSON(path string, body, v any) error {
	resp, err := c.do(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// download copies the response body of a GET request to w.
func (c *acdClient) download(path string, w io.Writer) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}
