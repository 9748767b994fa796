package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resellerd/internal/pkg/httpclient"
)

// MarzneshinClient implements Client for Marzneshin panels.
type MarzneshinClient struct {
	baseURL   string
	username  string
	password  string
	token     string
	tokenTime time.Time
	client    *httpclient.Client
}

func NewMarzneshinClient(baseURL, username, password string) *MarzneshinClient {
	return &MarzneshinClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify().WithoutRetries(),
	}
}

func (m *MarzneshinClient) PanelType() string { return "marzneshin" }

func (m *MarzneshinClient) Authenticate(ctx context.Context) error {
	form := map[string]string{
		"username": m.username,
		"password": m.password,
	}

	resp, err := m.client.PostForm(m.baseURL+"/api/admins/token", form)
	if err != nil {
		// Some deployments use the Marzban-compatible path.
		resp, err = m.client.PostForm(m.baseURL+"/api/admin/token", form)
	}
	if err != nil {
		return fmt.Errorf("marzneshin auth failed: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(resp, &out); err != nil {
		return fmt.Errorf("marzneshin auth parse error: %w", err)
	}
	token := getString(out, "access_token")
	if token == "" {
		return fmt.Errorf("marzneshin auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

func (m *MarzneshinClient) ensureAuth(ctx context.Context) error {
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		return m.Authenticate(ctx)
	}
	return nil
}

func (m *MarzneshinClient) GetUser(ctx context.Context, username string) (*RemoteUser, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(m.baseURL + "/api/users/" + username)
	if err != nil {
		return nil, fmt.Errorf("marzneshin get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzneshin parse user failed: %w", err)
	}
	if detail := getString(raw, "detail"); detail != "" {
		return nil, fmt.Errorf("marzneshin get user: %s", detail)
	}

	status := "active"
	if enabled, ok := raw["enabled"].(bool); ok && !enabled {
		status = "disabled"
	}
	if expired, ok := raw["expired"].(bool); ok && expired {
		status = "expired"
	}

	return &RemoteUser{
		Username:    getString(raw, "username"),
		Status:      status,
		DataLimit:   toInt64(raw["data_limit"]),
		UsedTraffic: toInt64(raw["used_traffic"]),
	}, nil
}

func (m *MarzneshinClient) setEnabled(ctx context.Context, username string, enabled bool) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	action := "disable"
	if enabled {
		action = "enable"
	}
	resp, err := m.client.Post(m.baseURL+"/api/users/"+username+"/"+action, nil)
	if err != nil {
		return fmt.Errorf("marzneshin %s failed: %w", action, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err == nil {
		if detail := getString(raw, "detail"); detail != "" && !strings.EqualFold(detail, "success") {
			return fmt.Errorf("marzneshin %s: %s", action, detail)
		}
	}
	return nil
}

func (m *MarzneshinClient) EnableUser(ctx context.Context, username string) error {
	return m.setEnabled(ctx, username, true)
}

func (m *MarzneshinClient) DisableUser(ctx context.Context, username string) error {
	return m.setEnabled(ctx, username, false)
}

func (m *MarzneshinClient) DeleteUser(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}
	_, err := m.client.Delete(m.baseURL + "/api/users/" + username)
	return err
}

func (m *MarzneshinClient) UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	body := map[string]interface{}{"username": username}
	if req.DataLimit > 0 {
		body["data_limit"] = req.DataLimit
	}
	if req.ExpireTime > 0 {
		body["expire_date"] = time.Unix(req.ExpireTime, 0).UTC().Format(time.RFC3339)
	}
	if len(body) == 1 {
		return nil
	}

	bodyJSON, _ := json.Marshal(body)
	_, err := m.client.Put(m.baseURL+"/api/users/"+username, bodyJSON)
	if err != nil {
		return fmt.Errorf("marzneshin update limits failed: %w", err)
	}
	return nil
}

func (m *MarzneshinClient) ResetTraffic(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}
	_, err := m.client.Post(m.baseURL+"/api/users/"+username+"/reset", nil)
	return err
}
