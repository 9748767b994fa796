package provision

import "context"

// RemoteUser is the panel-side view of an account.
type RemoteUser struct {
	Username    string `json:"username"`
	Status      string `json:"status"`
	DataLimit   int64  `json:"data_limit"`
	UsedTraffic int64  `json:"used_traffic"`
	ExpireTime  int64  `json:"expire_time"`
}

// UpdateLimitsRequest carries the mutable account fields pushed to a panel.
type UpdateLimitsRequest struct {
	DataLimit  int64 `json:"data_limit,omitempty"`
	ExpireTime int64 `json:"expire_time,omitempty"`
}

// RemoteActionResult reports the outcome of one remote mutation. Remote
// calls never gate local state changes; callers persist this alongside
// whatever they committed locally.
type RemoteActionResult struct {
	Success   bool   `json:"success"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// Client is the interface each panel integration implements.
type Client interface {
	// Authenticate logs in and stores the auth token/session.
	Authenticate(ctx context.Context) error

	// GetUser gets a user by username.
	GetUser(ctx context.Context, username string) (*RemoteUser, error)

	// EnableUser enables a user account.
	EnableUser(ctx context.Context, username string) error

	// DisableUser disables a user account.
	DisableUser(ctx context.Context, username string) error

	// DeleteUser removes a user from the panel.
	DeleteUser(ctx context.Context, username string) error

	// UpdateLimits pushes data/expiry limits to the panel.
	UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error

	// ResetTraffic resets traffic usage for a user.
	ResetTraffic(ctx context.Context, username string) error

	// PanelType returns the panel type identifier.
	PanelType() string
}
