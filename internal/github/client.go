package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/florianilch/ghdevice/internal/autherr"
	"github.com/florianilch/ghdevice/internal/credstore"
)

// maxBodySize bounds decoded response bodies (1 MiB, as golang.org/x/oauth2 does).
const maxBodySize = 1 << 20

var tracer = otel.Tracer("github.com/florianilch/ghdevice/internal/github")

// IdentityResolver resolves the identity behind an access token.
type IdentityResolver interface {
	FetchIdentity(ctx context.Context, accessToken string) (credstore.User, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIBaseURL overrides the REST API base URL (GitHub Enterprise, tests).
func WithAPIBaseURL(apiBaseURL string) ClientOption {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used as base for authenticated calls.
// If not provided, NewHTTPClient(nil, "") is used.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is the GitHub REST profile resolver.
type Client struct {
	apiBaseURL string
	httpClient *http.Client
}

// Compile-time check to ensure Client implements IdentityResolver
var _ IdentityResolver = (*Client)(nil)

// NewClient creates a Client for api.github.com unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		apiBaseURL: DefaultAPIBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(nil, "")
	}
	return c
}

// userResponse is the subset of GET /user we use.
type userResponse struct {
	Login     string `json:"login"`
	ID        *int64 `json:"id"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// EmailEntry is one element of GET /user/emails.
type EmailEntry struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity returns the profile of the token's owner.
//
// A 401 yields an error matching autherr.ErrUnauthorized; any other failure of
// the profile call is a transport or malformed error. A missing profile email
// is filled from the email list; failures of that secondary call are ignored.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (credstore.User, error) {
	ctx, span := tracer.Start(ctx, "github.FetchIdentity", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	httpClient := c.authorizedClient(ctx, accessToken)

	var profile userResponse
	if err := getJSON(ctx, httpClient, c.apiBaseURL+"/user", "github /user", &profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credstore.User{}, err
	}
	if strings.TrimSpace(profile.Login) == "" {
		err := autherr.Malformed("github /user", errors.New("response has no login"))
		span.SetStatus(codes.Error, err.Error())
		return credstore.User{}, err
	}

	user := credstore.User{
		Login:     profile.Login,
		ID:        profile.ID,
		AvatarURL: profile.AvatarURL,
		Name:      profile.Name,
		Email:     profile.Email,
	}

	if strings.TrimSpace(user.Email) == "" {
		user.Email = ""
		var emails []EmailEntry
		err := getJSON(ctx, httpClient, c.apiBaseURL+"/user/emails", "github /user/emails", &emails)
		if err != nil {
			// Enrichment only: a resolvable identity is returned regardless
			slog.DebugContext(ctx, "email lookup failed", "login", user.Login, "error", err)
		} else {
			user.Email = SelectEmail(emails)
		}
	}

	span.SetAttributes(attribute.String("github.login", user.Login))
	return user, nil
}

// SelectEmail picks the first primary and verified address, else the first
// verified one, else "".
func SelectEmail(entries []EmailEntry) string {
	for _, e := range entries {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range entries {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

// authorizedClient wraps the base client with a bearer token transport.
// oauth2 picks up the base client from the context (oauth2.HTTPClient key).
func (c *Client) authorizedClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

func getJSON(ctx context.Context, httpClient *http.Client, endpoint, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return autherr.Transport(op, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return autherr.Transport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return autherr.Status(op, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return autherr.Malformed(op, err)
	}
	return nil
}
