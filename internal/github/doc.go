// Package github talks to the GitHub OAuth and REST endpoints used by the
// device flow: endpoint construction, a header-setting transport shared by
// all requests, and the profile resolver that turns an access token into a
// user summary.
//
// # Profile Resolution
//
// FetchIdentity always hits the network so that a revoked token is noticed on
// the next call:
//
//	client := github.NewClient(github.WithAPIBaseURL(apiURL))
//	user, err := client.FetchIdentity(ctx, accessToken)
//	if errors.Is(err, autherr.ErrUnauthorized) {
//		// token revoked, clear the store
//	}
//
// When the public profile has no email, the account's email list is consulted
// and the first primary+verified address wins, then the first verified one.
package github
