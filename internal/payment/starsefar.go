package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resellerd/internal/pkg/httpclient"
)

const starsefarBaseURL = "https://panel.starsefar.com/api"

// StarsefarGateway implements Gateway for the Starsefar rial gateway.
// Besides callbacks, Starsefar supports polling an order's state, which
// the scheduler uses to catch dropped callbacks.
type StarsefarGateway struct {
	apiKey string
	client *httpclient.Client
}

func NewStarsefarGateway(apiKey string) *StarsefarGateway {
	return &StarsefarGateway{
		apiKey: apiKey,
		client: httpclient.New().
			WithTimeout(30*time.Second).
			WithHeader("Content-Type", "application/json").
			WithHeader("x-api-key", apiKey),
	}
}

func (s *StarsefarGateway) Name() string {
	return "starsefar"
}

func (s *StarsefarGateway) CreatePayment(ctx context.Context, amount int64, orderID, description, callbackURL string) (*PaymentResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"amount":       amount,
		"order_id":     orderID,
		"description":  description,
		"callback_url": callbackURL,
	})

	resp, err := s.client.Post(starsefarBaseURL+"/order/create", body)
	if err != nil {
		return nil, fmt.Errorf("starsefar create payment failed: %w", err)
	}

	var result struct {
		Status     int    `json:"status"`
		Message    string `json:"message"`
		PaymentURL string `json:"payment_url"`
		Authority  string `json:"authority"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("starsefar parse error: %w", err)
	}
	if result.Status != 100 || result.Authority == "" {
		return nil, fmt.Errorf("starsefar create rejected: %s", result.Message)
	}

	return &PaymentResult{
		OrderID:    orderID,
		PaymentURL: result.PaymentURL,
		Authority:  result.Authority,
	}, nil
}

func (s *StarsefarGateway) VerifyPayment(ctx context.Context, authority string, amount int64) (*VerifyResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"authority": authority,
		"amount":    amount,
	})

	resp, err := s.client.Post(starsefarBaseURL+"/order/verify", body)
	if err != nil {
		return nil, fmt.Errorf("starsefar verify failed: %w", err)
	}

	var result struct {
		Status int    `json:"status"`
		RefID  string `json:"ref_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("starsefar verify parse error: %w", err)
	}

	if result.Status == 100 || result.Status == 101 {
		return &VerifyResult{Verified: true, RefID: result.RefID}, nil
	}
	return &VerifyResult{
		Verified: false,
		Message:  fmt.Sprintf("verification failed with status %d", result.Status),
	}, nil
}

// CheckOrder polls the gateway for an order's current state.
func (s *StarsefarGateway) CheckOrder(ctx context.Context, orderID string) (*VerifyResult, error) {
	body, _ := json.Marshal(map[string]string{"order_id": orderID})

	resp, err := s.client.Post(starsefarBaseURL+"/order/status", body)
	if err != nil {
		return nil, fmt.Errorf("starsefar order status failed: %w", err)
	}

	var result struct {
		IsPaid bool   `json:"is_paid"`
		RefID  string `json:"ref_id"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("starsefar order status parse error: %w", err)
	}

	if result.IsPaid {
		return &VerifyResult{Verified: true, RefID: result.RefID}, nil
	}
	return &VerifyResult{Verified: false, Message: "order state: " + result.State}, nil
}
