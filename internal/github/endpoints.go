package github

import (
	"strings"

	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"
)

const (
	// DefaultBaseURL is the web host serving the OAuth endpoints.
	DefaultBaseURL = "https://github.com"
	// DefaultAPIBaseURL is the REST API host.
	DefaultAPIBaseURL = "https://api.github.com"

	// DeviceGrantType is the RFC 8628 grant type for device code exchange.
	DeviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	apiVersion = "2022-11-28"
	mediaType  = "application/vnd.github+json"
)

// Endpoint returns the OAuth2 endpoints for a GitHub web base URL.
// Empty or the public host returns the well-known github.com endpoints;
// anything else is treated as a GitHub Enterprise Server or a test server.
func Endpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	if base == "" || base == DefaultBaseURL {
		return oauth2github.Endpoint
	}

	return oauth2.Endpoint{
		AuthURL:       base + "/login/oauth/authorize",
		TokenURL:      base + "/login/oauth/access_token",
		DeviceAuthURL: base + "/login/device/code",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}
