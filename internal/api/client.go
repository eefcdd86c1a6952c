package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"peer_client/native/internal/domain"
	"peer_client/native/internal/observe"

	"github.com/pion/logging"
)

const (
	// authScheme prefixes the Authorization header of every resolve request.
	authScheme = "HMAC-SHA256"

	maxResponseBytes = 1 << 20
	maxErrorSnippet  = 256

	maxExpiresIn = math.MaxInt64 / int64(time.Second)
)

type resolveRequest struct {
	AppID     string `json:"appId"`
	KeyID     string `json:"keyId"`
	ConfID    string `json:"confId"`
	LocalID   string `json:"localId"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

type resolveResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   *int64      `json:"expires_in"`
	ICEServers  []iceServer `json:"iceServers"`
}

type iceServer struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username"`
	Credential string  `json:"credential"`
}

// urlList accepts both forms RTCIceServer allows for "urls": a single
// string or an array of strings.
type urlList []string

func (u *urlList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*u = nil
		} else {
			*u = urlList{one}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*u = many
	return nil
}

// Config configures a Client.
type Config struct {
	// URL of the authentication endpoint. Required.
	URL string

	// HTTPClient performs the exchange. Defaults to http.DefaultClient.
	// Timeouts belong here or on the context passed to Resolve.
	HTTPClient *http.Client

	// Metrics records resolution outcomes. Defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// LoggerFactory creates the "resolver" logger. Defaults to pion's
	// default factory.
	LoggerFactory logging.LoggerFactory

	// Now stamps the issuance time of resolved credentials. Defaults to time.Now.
	Now func() time.Time
}

// Client resolves credential bundles from the authentication service.
// It holds no per-call state; concurrent Resolve calls are independent.
type Client struct {
	url     string
	http    *http.Client
	metrics *observe.Metrics
	log     logging.LeveledLogger
	now     func() time.Time
	entropy io.Reader
}

var _ domain.CredentialResolver = (*Client)(nil)

// NewClient creates a resolver client.
func NewClient(cfg Config) *Client {
	c := &Client{
		url:     cfg.URL,
		http:    cfg.HTTPClient,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		entropy: rand.Reader,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.now == nil {
		c.now = time.Now
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	c.log = lf.NewLogger("resolver")
	return c
}

func generateNonce(entropy io.Reader) (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", err
	}
	h := sha1.Sum(buf)
	return fmt.Sprintf("%x", h)[:32], nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Resolve performs one authentication exchange and returns the resulting
// bundle. It never returns a partial bundle: on error the bundle is nil.
func (c *Client) Resolve(ctx context.Context, id domain.ClientIdentity) (*domain.CredentialBundle, error) {
	start := time.Now()
	bundle, err := c.resolve(ctx, id)
	c.metrics.RecordResolve(ctx, statusOf(err), time.Since(start))
	if err != nil {
		c.log.Warnf("resolve for app %s failed: %v", id.AppID, err)
		return nil, err
	}

	c.log.Infof("resolved credentials for app %s: %d ice servers, expires at %s",
		id.AppID, len(bundle.ICEServers), bundle.Credential.ExpiresAt().Format(time.RFC3339))
	return bundle, nil
}

func (c *Client) resolve(ctx context.Context, id domain.ClientIdentity) (*domain.CredentialBundle, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	nonce, err := generateNonce(c.entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %w", domain.ErrAuthenticationFailure, err)
	}

	body, err := json.Marshal(resolveRequest{
		AppID:     id.AppID,
		KeyID:     id.KeyID,
		ConfID:    id.ConfID,
		LocalID:   id.LocalID,
		Timestamp: c.now().Unix(),
		Nonce:     nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal resolve request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create http request: %w", domain.ErrAuthenticationFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", authScheme+" "+id.KeyID+":"+sign(id.Secret, body))

	c.log.Debugf("POST %s for app %s conf %s", c.url, id.AppID, id.ConfID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", domain.ErrAuthenticationFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrAuthenticationFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := respBody
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, fmt.Errorf("%w: http %d: %s", domain.ErrAuthenticationFailure, resp.StatusCode, string(snippet))
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrMalformedResponse, maxResponseBytes)
	}

	return decodeBundle(respBody, c.now())
}

// decodeBundle validates a response body against the wire contract and
// converts it into a bundle issued at issuedAt.
func decodeBundle(data []byte, issuedAt time.Time) (*domain.CredentialBundle, error) {
	var r resolveResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %w", domain.ErrMalformedResponse, err)
	}

	if r.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", domain.ErrMalformedResponse)
	}
	if r.ExpiresIn == nil {
		return nil, fmt.Errorf("%w: expires_in is missing", domain.ErrMalformedResponse)
	}
	if *r.ExpiresIn < 0 || *r.ExpiresIn > maxExpiresIn {
		return nil, fmt.Errorf("%w: expires_in out of range (%d)", domain.ErrMalformedResponse, *r.ExpiresIn)
	}

	servers := make([]domain.ICEServer, 0, len(r.ICEServers))
	for i, s := range r.ICEServers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("%w: iceServers[%d].urls is empty", domain.ErrMalformedResponse, i)
		}
		for j, u := range s.URLs {
			if u == "" {
				return nil, fmt.Errorf("%w: iceServers[%d].urls[%d] is empty", domain.ErrMalformedResponse, i, j)
			}
		}
		urls := make([]string, len(s.URLs))
		copy(urls, s.URLs)
		servers = append(servers, domain.ICEServer{
			URLs:       urls,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &domain.CredentialBundle{
		Credential: domain.Credential{
			AccessToken: r.AccessToken,
			TokenType:   r.TokenType,
			ExpiresIn:   time.Duration(*r.ExpiresIn) * time.Second,
			IssuedAt:    issuedAt,
		},
		ICEServers: servers,
	}, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, domain.ErrInvalidIdentity):
		return observe.StatusInvalidIdentity
	case errors.Is(err, domain.ErrMalformedResponse):
		return observe.StatusMalformed
	default:
		return observe.StatusAuthFailure
	}
}
