package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/florianilch/ghdevice/internal/deviceflow"
)

const (
	// defaultPollInterval applies when the provider sends no interval (RFC 8628 section 3.2).
	defaultPollInterval = 5 * time.Second
	// slowDownStep is added to the interval on every slow_down (RFC 8628 section 3.5).
	slowDownStep = 5 * time.Second
)

var (
	// ErrDeviceCodeExpired is returned once the device code lifetime has passed.
	ErrDeviceCodeExpired = errors.New("device code expired, start the login again")
	// ErrAccessDenied is returned when the user declined the authorization.
	ErrAccessDenied = errors.New("access denied by user")
)

// AwaitOption configures AwaitAuthorization.
type AwaitOption func(*awaitConfig)

type awaitConfig struct {
	sleep     func(ctx context.Context, d time.Duration) error
	onPending func(res deviceflow.Result, next time.Duration)
}

// WithSleep replaces the wait between attempts (tests pass a no-op).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) AwaitOption {
	return func(c *awaitConfig) {
		c.sleep = sleep
	}
}

// WithPendingHook is called after every pending attempt with the delay before the next one.
func WithPendingHook(hook func(res deviceflow.Result, next time.Duration)) AwaitOption {
	return func(c *awaitConfig) {
		c.onPending = hook
	}
}

// AwaitAuthorization polls Complete until the user finishes authorizing start.
//
// This is a caller-side loop on top of the stateless engine: it waits
// start.Interval between attempts, backs off on slow_down, and stops on
// success, on a hard error, on expired_token or access_denied, when
// start.ExpiresIn has elapsed, or when ctx is done.
func (s *Service) AwaitAuthorization(ctx context.Context, start deviceflow.Start, opts ...AwaitOption) (deviceflow.Result, error) {
	cfg := awaitConfig{
		sleep:     sleepContext,
		onPending: func(deviceflow.Result, time.Duration) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	interval := time.Duration(start.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	if start.ExpiresIn > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, time.Duration(start.ExpiresIn)*time.Second, ErrDeviceCodeExpired)
		defer cancel()
	}

	for {
		if err := cfg.sleep(ctx, interval); err != nil {
			return deviceflow.Result{}, stopCause(ctx, err)
		}

		res, err := s.Complete(ctx, start.DeviceCode)
		if err != nil {
			if ctx.Err() != nil {
				return deviceflow.Result{}, stopCause(ctx, err)
			}
			return deviceflow.Result{}, err
		}
		if !res.IsPending() {
			return res, nil
		}

		switch res.Status {
		case deviceflow.StatusAuthorizationPending:
		case deviceflow.StatusSlowDown:
			interval += slowDownStep
		case deviceflow.StatusExpiredToken:
			return deviceflow.Result{}, ErrDeviceCodeExpired
		case deviceflow.StatusAccessDenied:
			return deviceflow.Result{}, ErrAccessDenied
		default:
			return deviceflow.Result{}, fmt.Errorf("device flow failed: %s: %s", res.Status, res.Error)
		}
		cfg.onPending(res, interval)
	}
}

// stopCause prefers the context cause so that an elapsed device code reports
// ErrDeviceCodeExpired rather than a bare deadline.
func stopCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
