package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resellerd/internal/pkg/httpclient"
)

// MarzbanClient implements Client for Marzban panels.
type MarzbanClient struct {
	baseURL   string
	username  string
	password  string
	token     string
	tokenTime time.Time
	client    *httpclient.Client
}

func NewMarzbanClient(baseURL, username, password string) *MarzbanClient {
	return &MarzbanClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify().WithoutRetries(),
	}
}

func (m *MarzbanClient) PanelType() string { return "marzban" }

// Authenticate obtains a bearer token from the Marzban panel.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	resp, err := m.client.PostForm(m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return fmt.Errorf("marzban auth failed: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(resp, &out); err != nil {
		return fmt.Errorf("marzban auth parse error: %w", err)
	}
	token, ok := out["access_token"].(string)
	if !ok || token == "" {
		return fmt.Errorf("marzban auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

func (m *MarzbanClient) ensureAuth(ctx context.Context) error {
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		return m.Authenticate(ctx)
	}
	return nil
}

func (m *MarzbanClient) GetUser(ctx context.Context, username string) (*RemoteUser, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(m.baseURL + "/api/user/" + username)
	if err != nil {
		return nil, fmt.Errorf("marzban get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse error: %w", err)
	}
	if detail := getString(raw, "detail"); detail != "" {
		return nil, fmt.Errorf("marzban get user: %s", detail)
	}

	return &RemoteUser{
		Username:    getString(raw, "username"),
		Status:      getString(raw, "status"),
		DataLimit:   toInt64(raw["data_limit"]),
		UsedTraffic: toInt64(raw["used_traffic"]),
		ExpireTime:  toInt64(raw["expire"]),
	}, nil
}

func (m *MarzbanClient) modifyUser(ctx context.Context, username string, body map[string]interface{}) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	bodyJSON, _ := json.Marshal(body)
	resp, err := m.client.Put(m.baseURL+"/api/user/"+username, bodyJSON)
	if err != nil {
		return fmt.Errorf("marzban modify user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("marzban parse modify response: %w", err)
	}
	if detail := getString(raw, "detail"); detail != "" {
		return fmt.Errorf("marzban modify user: %s", detail)
	}
	return nil
}

func (m *MarzbanClient) EnableUser(ctx context.Context, username string) error {
	return m.modifyUser(ctx, username, map[string]interface{}{"status": "active"})
}

func (m *MarzbanClient) DisableUser(ctx context.Context, username string) error {
	return m.modifyUser(ctx, username, map[string]interface{}{"status": "disabled"})
}

func (m *MarzbanClient) DeleteUser(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}
	_, err := m.client.Delete(m.baseURL + "/api/user/" + username)
	return err
}

func (m *MarzbanClient) UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error {
	body := map[string]interface{}{}
	if req.DataLimit > 0 {
		body["data_limit"] = req.DataLimit
	}
	if req.ExpireTime > 0 {
		body["expire"] = req.ExpireTime
	}
	if len(body) == 0 {
		return nil
	}
	return m.modifyUser(ctx, username, body)
}

func (m *MarzbanClient) ResetTraffic(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}
	_, err := m.client.Post(m.baseURL+"/api/user/"+username+"/reset", nil)
	return err
}

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
