package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/florianilch/ghdevice/internal/autherr"
	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/github"
	"github.com/florianilch/ghdevice/internal/settings"
)

const (
	opStart    = "github device code"
	opExchange = "github token exchange"

	// maxBodySize bounds token responses (1 MiB, as golang.org/x/oauth2 does).
	maxBodySize = 1 << 20
)

var tracer = otel.Tracer("github.com/florianilch/ghdevice/internal/deviceflow")

// Option configures an Engine.
type Option func(*Engine)

// WithEndpoint sets the OAuth endpoints. Defaults to github.com.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(e *Engine) {
		e.endpoint = endpoint
	}
}

// WithHTTPClient sets the client used for the device code and token requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = httpClient
	}
}

// WithClock overrides the time source used for the credential creation time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs the device authorization grant. It is safe for concurrent use
// and keeps no state between Start and Complete.
type Engine struct {
	store    credstore.Store
	resolver github.IdentityResolver
	settings settings.Source

	endpoint   oauth2.Endpoint
	httpClient *http.Client
	now        func() time.Time
}

// New creates an Engine. The settings source may be nil, in which case the
// built-in client id and scopes are used.
func New(store credstore.Store, resolver github.IdentityResolver, src settings.Source, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if resolver == nil {
		return nil, fmt.Errorf("missing identity resolver")
	}

	e := &Engine{
		store:    store,
		resolver: resolver,
		settings: src,
		endpoint: github.Endpoint(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = github.NewHTTPClient(nil, "")
	}

	return e, nil
}

// deviceCodeResponse is the device authorization endpoint body.
type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// Start requests a device and user code pair. The provider's fields are
// returned as sent.
func (e *Engine) Start(ctx context.Context) (Start, error) {
	ctx, span := tracer.Start(ctx, "deviceflow.Start", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	client := settings.Resolve(ctx, e.settings)
	scope := strings.Join(client.ScopeList(), " ")
	form := url.Values{"client_id": {client.ClientID}}
	if scope != "" {
		form.Set("scope", scope)
	}

	status, body, err := e.postForm(ctx, opStart, e.endpoint.DeviceAuthURL, form)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Start{}, err
	}
	if status < 200 || status > 299 {
		err := statusError(opStart, status)
		span.SetStatus(codes.Error, err.Error())
		return Start{}, err
	}

	var resp deviceCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = autherr.Malformed(opStart, err)
		span.SetStatus(codes.Error, err.Error())
		return Start{}, err
	}
	if resp.DeviceCode == "" || resp.UserCode == "" || resp.VerificationURI == "" {
		err := autherr.Malformed(opStart, errors.New("response is missing device_code, user_code or verification_uri"))
		span.SetStatus(codes.Error, err.Error())
		return Start{}, err
	}

	span.SetAttributes(attribute.Int64("deviceflow.interval", resp.Interval))
	slog.DebugContext(ctx, "device code issued", "verification_uri", resp.VerificationURI, "interval", resp.Interval)

	return Start{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresIn:               resp.ExpiresIn,
		Interval:                resp.Interval,
		Scope:                   scope,
	}, nil
}

// tokenResponse is the token endpoint body. GitHub answers 200 for both
// issued tokens and pending states.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Complete makes a single token exchange attempt for deviceCode.
//
// A provider error code yields a Pending result. An issued token is resolved
// to a user and persisted before Success is returned; a token the API refuses
// straight away is reported as autherr.ErrTokenRejected and not stored.
func (e *Engine) Complete(ctx context.Context, deviceCode string) (Result, error) {
	if strings.TrimSpace(deviceCode) == "" {
		return Result{}, autherr.Input("deviceCode is required")
	}

	ctx, span := tracer.Start(ctx, "deviceflow.Complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	client := settings.Resolve(ctx, e.settings)
	payload, err := e.exchange(ctx, client.ClientID, deviceCode)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if payload.Error != "" {
		span.SetAttributes(attribute.String("oauth.error", payload.Error))
		return Pending(payload.Error, payload.ErrorDescription), nil
	}

	if strings.TrimSpace(payload.AccessToken) == "" {
		err := autherr.Malformed(opExchange, errors.New("missing access token"))
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	user, err := e.resolver.FetchIdentity(ctx, payload.AccessToken)
	if err != nil {
		if errors.Is(err, autherr.ErrUnauthorized) {
			err = &autherr.Error{Kind: autherr.KindTransport, Op: opExchange, Err: autherr.ErrTokenRejected}
		}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	cred := &credstore.Credential{
		AccessToken: payload.AccessToken,
		Scope:       payload.Scope,
		TokenType:   payload.TokenType,
		CreatedAt:   e.now().UnixMilli(),
		User:        &user,
	}
	if err := e.store.Save(ctx, cred); err != nil {
		err = &autherr.Error{Kind: autherr.KindStorage, Op: "saving credential", Err: err}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	slog.InfoContext(ctx, "github account connected", "login", user.Login, "scope", payload.Scope)
	return Success(user, payload.Scope), nil
}

// exchange posts the device code to the token endpoint once.
func (e *Engine) exchange(ctx context.Context, clientID, deviceCode string) (tokenResponse, error) {
	form := url.Values{
		"client_id":   {clientID},
		"device_code": {deviceCode},
		"grant_type":  {github.DeviceGrantType},
	}

	status, body, err := e.postForm(ctx, opExchange, e.endpoint.TokenURL, form)
	if err != nil {
		return tokenResponse{}, err
	}

	var payload tokenResponse
	decodeErr := json.Unmarshal(body, &payload)

	if status < 200 || status > 299 {
		// RFC 8628 providers answer pending states with 400 instead of 200
		if decodeErr == nil && (status == http.StatusBadRequest || status == http.StatusUnauthorized) &&
			isDeviceFlowCode(payload.Error) {
			return payload, nil
		}
		return tokenResponse{}, statusError(opExchange, status)
	}

	if decodeErr != nil {
		return tokenResponse{}, autherr.Malformed(opExchange, decodeErr)
	}
	return payload, nil
}

// postForm sends form to endpoint bound to ctx and returns the status code and
// the size-limited body.
func (e *Engine) postForm(ctx context.Context, op, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, autherr.Transport(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, nil, autherr.Transport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, autherr.Transport(op, err)
	}
	return resp.StatusCode, body, nil
}

// statusError reports an unexpected status from an OAuth endpoint. A 401 from
// these endpoints concerns the client, not the stored credential, so it is
// never KindUnauthorized.
func statusError(op string, code int) error {
	return &autherr.Error{Kind: autherr.KindTransport, Op: op, StatusCode: code}
}
