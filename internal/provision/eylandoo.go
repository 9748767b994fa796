package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resellerd/internal/pkg/httpclient"
)

// EylandooClient implements Client for Eylandoo panels. Auth is a static
// API key header, so Authenticate only checks reachability.
type EylandooClient struct {
	baseURL string
	client  *httpclient.Client
}

func NewEylandooClient(baseURL, apiKey string) *EylandooClient {
	return &EylandooClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithInsecureSkipVerify().
			WithoutRetries().
			WithHeader("X-API-Key", strings.TrimSpace(apiKey)),
	}
}

func (e *EylandooClient) PanelType() string { return "eylandoo" }

func (e *EylandooClient) Authenticate(ctx context.Context) error {
	_, err := e.client.Get(e.baseURL + "/api/v1/ping")
	if err != nil {
		return fmt.Errorf("eylandoo ping failed: %w", err)
	}
	return nil
}

func (e *EylandooClient) GetUser(ctx context.Context, username string) (*RemoteUser, error) {
	resp, err := e.client.Get(e.baseURL + "/api/v1/users/" + username)
	if err != nil {
		return nil, fmt.Errorf("eylandoo get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("eylandoo parse user failed: %w", err)
	}
	if msg := getString(raw, "error"); msg != "" {
		return nil, fmt.Errorf("eylandoo get user: %s", msg)
	}

	return &RemoteUser{
		Username:    getString(raw, "username"),
		Status:      getString(raw, "status"),
		DataLimit:   toInt64(raw["data_limit"]),
		UsedTraffic: toInt64(raw["used_traffic"]),
		ExpireTime:  toInt64(raw["expire_at"]),
	}, nil
}

func (e *EylandooClient) post(path string, body map[string]interface{}) error {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	resp, err := e.client.Post(e.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("eylandoo request failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil
	}
	if msg := getString(raw, "error"); msg != "" {
		return fmt.Errorf("eylandoo rejected: %s", msg)
	}
	return nil
}

func (e *EylandooClient) EnableUser(ctx context.Context, username string) error {
	return e.post("/api/v1/users/"+username+"/enable", nil)
}

func (e *EylandooClient) DisableUser(ctx context.Context, username string) error {
	return e.post("/api/v1/users/"+username+"/disable", nil)
}

func (e *EylandooClient) DeleteUser(ctx context.Context, username string) error {
	_, err := e.client.Delete(e.baseURL + "/api/v1/users/" + username)
	return err
}

func (e *EylandooClient) UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error {
	body := map[string]interface{}{}
	if req.DataLimit > 0 {
		body["data_limit"] = req.DataLimit
	}
	if req.ExpireTime > 0 {
		body["expire_at"] = req.ExpireTime
	}
	if len(body) == 0 {
		return nil
	}
	return e.post("/api/v1/users/"+username+"/limits", body)
}

func (e *EylandooClient) ResetTraffic(ctx context.Context, username string) error {
	return e.post("/api/v1/users/"+username+"/reset", nil)
}
