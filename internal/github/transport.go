package github

import (
	"net/http"
)

// DefaultUserAgent identifies requests; GitHub rejects API calls without one.
const DefaultUserAgent = "ghdevice"

// NewHTTPClient returns an HTTP client whose requests carry the headers GitHub
// expects. A nil base uses http.DefaultTransport. No client-level timeout is
// set; callers bound requests through their context.
func NewHTTPClient(base http.RoundTripper, userAgent string) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &http.Client{
		Transport: &headerTransport{
			base:      base,
			userAgent: userAgent,
		},
	}
}

// headerTransport adds User-Agent, Accept and API version headers.
// Accept is only set when the request has none, so OAuth calls asking for
// application/json keep their own.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

// Compile-time check that headerTransport implements http.RoundTripper.
var _ http.RoundTripper = (*headerTransport)(nil)

// RoundTrip clones the request (RoundTrippers must not modify the original) and sets headers.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	newReq := req.Clone(req.Context())
	newReq.Header.Set("User-Agent", t.userAgent)
	newReq.Header.Set("X-GitHub-Api-Version", apiVersion)
	if newReq.Header.Get("Accept") == "" {
		newReq.Header.Set("Accept", mediaType)
	}

	return t.base.RoundTrip(newReq)
}
