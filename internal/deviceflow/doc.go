// Package deviceflow implements the two exchanges of the OAuth 2.0 device
// authorization grant (RFC 8628) against GitHub.
//
// The Engine holds no session between the two steps; the caller threads the
// device code from Start into Complete and owns the poll cadence:
//
//	start, err := engine.Start(ctx)
//	// show start.UserCode and start.VerificationURI
//	for {
//		res, err := engine.Complete(ctx, start.DeviceCode)
//		if err != nil || res.Outcome == deviceflow.OutcomeSuccess {
//			break
//		}
//		time.Sleep(time.Duration(start.Interval) * time.Second)
//	}
//
// Provider error codes such as authorization_pending and slow_down are
// returned as a Pending Result, never as an error, so a poll loop only aborts
// on real failures.
package deviceflow
