package api

import (
	"context"

	"peer_client/native/internal/domain"
)

// Result is the outcome of one asynchronous resolution. Exactly one of
// Bundle and Err is set.
type Result struct {
	Bundle *domain.CredentialBundle
	Err    error
}

// ResolveAsync runs one resolution on its own goroutine. The returned
// channel yields exactly one Result and is then closed. Cancelling ctx
// abandons the exchange; the Result then carries the failure.
func ResolveAsync(ctx context.Context, r domain.CredentialResolver, id domain.ClientIdentity) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		bundle, err := r.Resolve(ctx, id)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		out <- Result{Bundle: bundle}
	}()
	return out
}
