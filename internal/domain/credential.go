package domain

import "time"

// Credential is the short-lived access token issued by the authentication
// service. It is never mutated; a fresh resolution supersedes it.
type Credential struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

// ExpiresAt returns the instant after which the token should no longer be used.
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(c.ExpiresIn)
}

// ICEServer describes one STUN/TURN endpoint group sharing a single set of
// credentials. URLs are kept in the order the service returned them.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// CredentialBundle pairs an access token with the ICE servers issued alongside
// it. Consumers must use the token and ICE servers of the same bundle.
type CredentialBundle struct {
	Credential Credential
	ICEServers []ICEServer
}

// Valid reports whether the bundle can still be used to start media at now.
// Nothing enforces this; callers decide what to do with a stale bundle.
func (b *CredentialBundle) Valid(now time.Time) bool {
	if b == nil || b.Credential.AccessToken == "" {
		return false
	}
	return now.Before(b.Credential.ExpiresAt())
}
