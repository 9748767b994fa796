package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resellerd/internal/pkg/httpclient"
)

const tetra98BaseURL = "https://tetra98.ir/api"

// Tetra98Gateway implements Gateway for the Tetra98 currency-swap
// gateway. Verification posts the callback's authority plus the order
// hash back to the gateway; status 100 means paid.
type Tetra98Gateway struct {
	apiKey string
	client *httpclient.Client
}

func NewTetra98Gateway(apiKey string) *Tetra98Gateway {
	return &Tetra98Gateway{
		apiKey: apiKey,
		client: httpclient.New().
			WithTimeout(30*time.Second).
			WithHeader("Content-Type", "application/json").
			WithHeader("Accept", "application/json"),
	}
}

func (t *Tetra98Gateway) Name() string {
	return "tetra98"
}

func (t *Tetra98Gateway) CreatePayment(ctx context.Context, amount int64, orderID, description, callbackURL string) (*PaymentResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"ApiKey":      t.apiKey,
		"amount":      amount,
		"hashid":      orderID,
		"description": description,
		"callback":    callbackURL,
	})

	resp, err := t.client.Post(tetra98BaseURL+"/create_order", body)
	if err != nil {
		return nil, fmt.Errorf("tetra98 create payment failed: %w", err)
	}

	var result struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
		Link   string `json:"link"`
		HashID string `json:"hashid"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("tetra98 parse error: %w", err)
	}
	if result.Status != 100 || result.Link == "" {
		return nil, fmt.Errorf("tetra98 create rejected: %s", result.Msg)
	}

	hashID := result.HashID
	if hashID == "" {
		hashID = orderID
	}
	return &PaymentResult{
		OrderID:    orderID,
		PaymentURL: result.Link,
		HashID:     hashID,
	}, nil
}

func (t *Tetra98Gateway) VerifyPayment(ctx context.Context, authority string, amount int64) (*VerifyResult, error) {
	return t.verify(ctx, authority, "")
}

// VerifyOrder verifies a callback carrying both the authority and the
// order hash, the shape Tetra98 actually delivers.
func (t *Tetra98Gateway) VerifyOrder(ctx context.Context, authority, hashID string) (*VerifyResult, error) {
	return t.verify(ctx, authority, hashID)
}

func (t *Tetra98Gateway) verify(ctx context.Context, authority, hashID string) (*VerifyResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"ApiKey":    t.apiKey,
		"authority": authority,
		"hashid":    hashID,
	})

	resp, err := t.client.Post(tetra98BaseURL+"/verify", body)
	if err != nil {
		return nil, fmt.Errorf("tetra98 verify failed: %w", err)
	}

	var result struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("tetra98 verify parse error: %w", err)
	}

	if result.Status == 100 {
		return &VerifyResult{Verified: true, RefID: authority}, nil
	}
	return &VerifyResult{
		Verified: false,
		Message:  fmt.Sprintf("verification failed with status %d", result.Status),
	}, nil
}
