package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"resellerd/internal/pkg/httpclient"
)

// XUIClient implements Client for 3x-ui style panels. Sessions are cookie
// based, and accounts live as "clients" inside a single inbound.
type XUIClient struct {
	baseURL        string
	username       string
	password       string
	defaultInbound int
	client         *httpclient.Client
}

func NewXUIClient(baseURL, username, password, inboundID string) *XUIClient {
	id, _ := strconv.Atoi(strings.TrimSpace(inboundID))
	if id <= 0 {
		id = 1
	}
	return &XUIClient{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:       strings.TrimSpace(username),
		password:       password,
		defaultInbound: id,
		client:         httpclient.New().WithTimeout(30*time.Second).WithInsecureSkipVerify().WithoutRetries().WithHeader("Accept", "application/json"),
	}
}

func (x *XUIClient) PanelType() string { return "xui" }

func (x *XUIClient) Authenticate(ctx context.Context) error {
	httpc := x.client.Raw()
	_, err := httpc.R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"username": x.username,
			"password": x.password,
		}).
		Post(x.baseURL + "/login")
	if err != nil {
		return fmt.Errorf("xui auth failed: %w", err)
	}
	return nil
}

func (x *XUIClient) GetUser(ctx context.Context, username string) (*RemoteUser, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}
	row, err := x.fetchClientTraffic(username)
	if err != nil {
		return nil, err
	}

	status := "active"
	if enabled, ok := row["enable"].(bool); ok && !enabled {
		status = "disabled"
	}
	used := toInt64(row["up"]) + toInt64(row["down"])
	return &RemoteUser{
		Username:    username,
		Status:      status,
		DataLimit:   toInt64(row["total"]),
		UsedTraffic: used,
		ExpireTime:  toInt64(row["expiryTime"]) / 1000,
	}, nil
}

func (x *XUIClient) EnableUser(ctx context.Context, username string) error {
	return x.setEnabled(ctx, username, true)
}

func (x *XUIClient) DisableUser(ctx context.Context, username string) error {
	return x.setEnabled(ctx, username, false)
}

func (x *XUIClient) setEnabled(ctx context.Context, username string, enabled bool) error {
	return x.updateClient(ctx, username, func(client map[string]interface{}) {
		client["enable"] = enabled
	})
}

func (x *XUIClient) DeleteUser(ctx context.Context, username string) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	row, err := x.fetchClientTraffic(username)
	if err != nil {
		return err
	}
	inboundID := int(toInt64(row["inboundId"]))
	if inboundID <= 0 {
		inboundID = x.defaultInbound
	}
	clientID, err := x.findClientID(inboundID, username)
	if err != nil {
		return err
	}

	httpc := x.client.Raw()
	resp, err := httpc.R().Post(fmt.Sprintf("%s/panel/api/inbounds/%d/delClient/%s", x.baseURL, inboundID, clientID))
	if err != nil {
		return fmt.Errorf("xui delete user failed: %w", err)
	}
	return checkXUISuccess(resp.Body(), "delete")
}

func (x *XUIClient) UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error {
	return x.updateClient(ctx, username, func(client map[string]interface{}) {
		if req.DataLimit > 0 {
			client["totalGB"] = req.DataLimit
		}
		if req.ExpireTime > 0 {
			client["expiryTime"] = req.ExpireTime * 1000
		}
	})
}

func (x *XUIClient) ResetTraffic(ctx context.Context, username string) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	row, err := x.fetchClientTraffic(username)
	if err != nil {
		return err
	}
	inboundID := int(toInt64(row["inboundId"]))
	if inboundID <= 0 {
		inboundID = x.defaultInbound
	}

	httpc := x.client.Raw()
	resp, err := httpc.R().Post(fmt.Sprintf("%s/panel/api/inbounds/%d/resetClientTraffic/%s", x.baseURL, inboundID, username))
	if err != nil {
		return fmt.Errorf("xui reset traffic failed: %w", err)
	}
	return checkXUISuccess(resp.Body(), "reset traffic")
}

// updateClient mutates a client entry in place and pushes it back through
// updateClient. XUI stores clients as a JSON string inside the inbound
// settings, so the round trip is read-modify-write.
func (x *XUIClient) updateClient(ctx context.Context, username string, mutate func(map[string]interface{})) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	row, err := x.fetchClientTraffic(username)
	if err != nil {
		return err
	}
	inboundID := int(toInt64(row["inboundId"]))
	if inboundID <= 0 {
		inboundID = x.defaultInbound
	}

	client, err := x.findClient(inboundID, username)
	if err != nil {
		return err
	}
	mutate(client)

	clientID, _ := client["id"].(string)
	settingsJSON, _ := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{client},
	})
	payload := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	httpc := x.client.Raw()
	resp, err := httpc.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(fmt.Sprintf("%s/panel/api/inbounds/updateClient/%s", x.baseURL, clientID))
	if err != nil {
		return fmt.Errorf("xui update client failed: %w", err)
	}
	return checkXUISuccess(resp.Body(), "update client")
}

func (x *XUIClient) fetchClientTraffic(username string) (map[string]interface{}, error) {
	resp, err := x.client.Get(x.baseURL + "/panel/api/inbounds/getClientTraffics/" + username)
	if err != nil {
		return nil, fmt.Errorf("xui get client failed: %w", err)
	}

	var out struct {
		Success bool                   `json:"success"`
		Obj     map[string]interface{} `json:"obj"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("xui parse client failed: %w", err)
	}
	if !out.Success || out.Obj == nil {
		return nil, fmt.Errorf("xui client %s not found", username)
	}
	return out.Obj, nil
}

func (x *XUIClient) findClient(inboundID int, username string) (map[string]interface{}, error) {
	resp, err := x.client.Get(fmt.Sprintf("%s/panel/api/inbounds/get/%d", x.baseURL, inboundID))
	if err != nil {
		return nil, fmt.Errorf("xui get inbound failed: %w", err)
	}

	var out struct {
		Success bool `json:"success"`
		Obj     struct {
			Settings string `json:"settings"`
		} `json:"obj"`
	}
	if err := json.Unmarshal(resp, &out); err != nil || !out.Success {
		return nil, fmt.Errorf("xui inbound %d not found", inboundID)
	}

	var settings struct {
		Clients []map[string]interface{} `json:"clients"`
	}
	if err := json.Unmarshal([]byte(out.Obj.Settings), &settings); err != nil {
		return nil, fmt.Errorf("xui parse inbound settings: %w", err)
	}
	for _, c := range settings.Clients {
		if email, _ := c["email"].(string); email == username {
			return c, nil
		}
	}
	return nil, fmt.Errorf("xui client %s not in inbound %d", username, inboundID)
}

func (x *XUIClient) findClientID(inboundID int, username string) (string, error) {
	client, err := x.findClient(inboundID, username)
	if err != nil {
		return "", err
	}
	id, _ := client["id"].(string)
	if id == "" {
		return "", fmt.Errorf("xui client %s has no id", username)
	}
	return id, nil
}

func checkXUISuccess(body []byte, action string) error {
	var out struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("xui %s parse failed: %w", action, err)
	}
	if !out.Success {
		return fmt.Errorf("xui %s rejected: %s", action, out.Msg)
	}
	return nil
}
