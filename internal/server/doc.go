// Package server exposes the auth service as a small JSON API meant to be
// bound to loopback for a local UI.
//
// Device flow outcomes, including pending ones, are answered with 200; only
// errors map to non-2xx statuses, chosen by autherr.Kind.
package server
