package deviceflow

import (
	"github.com/florianilch/ghdevice/internal/credstore"
)

// Provider error codes returned while the user has not finished authorizing.
const (
	StatusAuthorizationPending = "authorization_pending"
	StatusSlowDown             = "slow_down"
	StatusExpiredToken         = "expired_token"
	StatusAccessDenied         = "access_denied"
)

// Start is the device/user code pair handed to the UI.
type Start struct {
	// DeviceCode is opaque and must never be shown to the user.
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete,omitempty"`
	// ExpiresIn is the lifetime of the device code in seconds.
	ExpiresIn int64 `json:"expiresIn"`
	// Interval is the minimum number of seconds between Complete calls.
	Interval int64 `json:"interval"`
	// Scope echoes the requested space-delimited scopes.
	Scope string `json:"scope,omitempty"`
}

// Outcome discriminates Result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
)

// Result is the non-error outcome of Complete.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Connected bool    `json:"connected"`

	// Set on success.
	User  *credstore.User `json:"user,omitempty"`
	Scope string          `json:"scope,omitempty"`

	// Set when pending. Status is the provider error code, Error its description.
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success builds a success Result.
func Success(user credstore.User, scope string) Result {
	return Result{
		Outcome:   OutcomeSuccess,
		Connected: true,
		User:      &user,
		Scope:     scope,
	}
}

// Pending builds a pending Result; an empty description falls back to the code.
func Pending(status, description string) Result {
	if description == "" {
		description = status
	}
	return Result{
		Outcome: OutcomePending,
		Status:  status,
		Error:   description,
	}
}

// IsPending reports whether the caller should try again later.
func (r Result) IsPending() bool {
	return r.Outcome == OutcomePending
}

// isDeviceFlowCode reports whether code is one of the RFC 8628 section 3.5 codes.
func isDeviceFlowCode(code string) bool {
	switch code {
	case StatusAuthorizationPending, StatusSlowDown, StatusExpiredToken, StatusAccessDenied:
		return true
	}
	return false
}
