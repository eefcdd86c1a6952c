package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"peer_client/native/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	bundle *domain.CredentialBundle
	err    error
	block  bool
}

func (s *stubResolver) Resolve(ctx context.Context, _ domain.ClientIdentity) (*domain.CredentialBundle, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.bundle, s.err
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return res
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

func TestResolveAsync_DeliversBundle(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, okBody)
	c := newTestClient(t, srv.URL)

	ch := ResolveAsync(context.Background(), c, testIdentity)
	res := receive(t, ch)

	require.NoError(t, res.Err)
	require.NotNil(t, res.Bundle)
	assert.Equal(t, "tok-123", res.Bundle.Credential.AccessToken)

	_, ok := <-ch
	assert.False(t, ok, "expected channel to be closed after one result")
}

func TestResolveAsync_DeliversError(t *testing.T) {
	srv := serveJSON(t, http.StatusUnauthorized, `{"error":"bad signature"}`)
	c := newTestClient(t, srv.URL)

	res := receive(t, ResolveAsync(context.Background(), c, testIdentity))

	assert.Nil(t, res.Bundle)
	assert.ErrorIs(t, res.Err, domain.ErrAuthenticationFailure)
}

func TestResolveAsync_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := ResolveAsync(ctx, &stubResolver{block: true}, testIdentity)

	cancel()
	res := receive(t, ch)

	assert.Nil(t, res.Bundle)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestResolveAsync_NeverMixesBundleAndError(t *testing.T) {
	stub := &stubResolver{
		bundle: &domain.CredentialBundle{Credential: domain.Credential{AccessToken: "leftover"}},
		err:    domain.ErrMalformedResponse,
	}

	res := receive(t, ResolveAsync(context.Background(), stub, testIdentity))

	assert.Nil(t, res.Bundle)
	assert.ErrorIs(t, res.Err, domain.ErrMalformedResponse)
}
