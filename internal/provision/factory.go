package provision

import (
	"fmt"

	"resellerd/internal/models"
)

// NewClient creates a panel client for the panel's type.
func NewClient(p *models.Panel) (Client, error) {
	switch p.Type {
	case models.PanelMarzban:
		return NewMarzbanClient(p.URL, p.Username, p.Password), nil
	case models.PanelMarzneshin:
		return NewMarzneshinClient(p.URL, p.Username, p.Password), nil
	case models.PanelXUI:
		return NewXUIClient(p.URL, p.Username, p.Password, p.InboundID), nil
	case models.PanelEylandoo:
		apiKey := p.APIKey
		if apiKey == "" {
			apiKey = p.Password
		}
		return NewEylandooClient(p.URL, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported panel type: %s", p.Type)
	}
}
