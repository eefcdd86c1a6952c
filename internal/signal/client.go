package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"peer_client/native/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// Protocol methods.
const (
	methodAuth             = "AUTH"
	methodAuthResponse     = "AUTH_RESPONSE"
	methodJoin             = "JOIN"
	methodJoinResponse     = "JOIN_RESPONSE"
	methodPeerIn           = "PEER_IN"
	methodPeerOut          = "PEER_OUT"
	methodTransmit         = "TRANSMIT"
	methodTransmitResponse = "TRANSMIT_RESPONSE"

	typeSDPOffer     = "SDP_OFFER"
	typeSDPAnswer    = "SDP_ANSWER"
	typeICECandidate = "ICE_CANDIDATE"
)

const writeWait = 5 * time.Second

// message is the generic WebSocket message envelope.
type message struct {
	Method            string `json:"method"`
	Code              *int   `json:"code,omitempty"`
	Message           string `json:"message,omitempty"`
	ClientType        string `json:"clientType,omitempty"`
	ClientID          string `json:"clientId,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	TokenType         string `json:"tokenType,omitempty"`
	AppID             string `json:"appId,omitempty"`
	Conference        string `json:"conference,omitempty"`
	Name              string `json:"name,omitempty"`
	RecipientClientID string `json:"recipientClientId,omitempty"`
	SenderClientID    string `json:"senderClientId,omitempty"`
	SessionID         string `json:"sessionId,omitempty"`
	MessageType       string `json:"messageType,omitempty"`
	MessagePayload    string `json:"messagePayload,omitempty"`
}

// Config configures a signaling Client.
type Config struct {
	// URL of the signaling WebSocket endpoint.
	URL string

	// Bundle supplies the access token presented in AUTH.
	Bundle *domain.CredentialBundle

	// Identity names the conference to join and this client within it.
	Identity domain.ClientIdentity

	// PingInterval between WebSocket pings. Zero disables pings.
	PingInterval time.Duration

	LoggerFactory logging.LoggerFactory
}

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	cfg       Config
	sessionID string
	handler   domain.Handler
	log       logging.LeveledLogger

	mu       sync.Mutex
	conn     *websocket.Conn
	remoteID string

	closeOnce sync.Once
	closed    chan struct{}
}

var _ domain.Signaler = (*Client)(nil)

// NewClient creates a new signaling client.
func NewClient(cfg Config, handler domain.Handler) *Client {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Client{
		cfg:       cfg,
		sessionID: fmt.Sprintf("%s-%d", cfg.Identity.LocalID, time.Now().UnixMilli()),
		handler:   handler,
		log:       lf.NewLogger("signal"),
		closed:    make(chan struct{}),
	}
}

// Connect dials the signaling WebSocket, authenticates with the bundle's
// access token and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.Bundle == nil {
		return fmt.Errorf("signal connect: no credential bundle")
	}

	c.log.Infof("connecting to %s", c.cfg.URL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.sendAuth()

	go c.readLoop()
	if c.cfg.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// Done is closed once the connection has been shut down.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Close shuts down the WebSocket connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) sendJSON(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.log.Warnf("dropping %s: not connected", msg.Method)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Errorf("marshal error: %v", err)
		return
	}
	c.log.Tracef(">>> %s", string(data))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warnf("write error: %v", err)
	}
}

func (c *Client) sendAuth() {
	cred := c.cfg.Bundle.Credential
	c.sendJSON(message{
		Method:      methodAuth,
		ClientType:  "app",
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
		AppID:       c.cfg.Identity.AppID,
		ClientID:    c.cfg.Identity.LocalID,
	})
}

// SendJoin asks to join the conference named by the identity's ConfID.
func (c *Client) SendJoin() {
	c.sendJSON(message{
		Method:     methodJoin,
		Conference: c.cfg.Identity.ConfID,
		Name:       c.cfg.Identity.LocalID,
	})
}

func (c *Client) recipient() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteID
}

func (c *Client) transmit(messageType string, payload any) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		c.log.Errorf("marshal %s payload: %v", messageType, err)
		return
	}

	c.sendJSON(message{
		Method:            methodTransmit,
		MessageType:       messageType,
		MessagePayload:    base64.StdEncoding.EncodeToString(payloadJSON),
		RecipientClientID: c.recipient(),
		SenderClientID:    c.cfg.Identity.LocalID,
		SessionID:         c.sessionID,
	})
}

// SendSDPOffer sends the SDP offer via TRANSMIT.
func (c *Client) SendSDPOffer(sdp string) {
	c.transmit(typeSDPOffer, domain.SDPPayload{Type: "offer", SDP: sdp})
}

// SendICECandidate sends a local ICE candidate via TRANSMIT.
func (c *Client) SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string) {
	c.transmit(typeICECandidate, domain.ICECandidatePayload{
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
		Candidate:     candidate,
	})
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warnf("read error: %v", err)
			}
			return
		}

		c.log.Tracef("<<< %s", string(data))

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warnf("unmarshal error: %v", err)
			continue
		}

		c.dispatch(msg)
	}
}

func decodePayload(encoded string, v any) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(decoded, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func (c *Client) dispatch(msg message) {
	switch msg.Method {
	case methodAuthResponse:
		if msg.Code != nil && *msg.Code == 0 {
			c.log.Info("auth successful")
			c.handler.OnAuthSuccess()
		} else {
			code := -1
			if msg.Code != nil {
				code = *msg.Code
			}
			c.log.Errorf("auth failed: code=%d msg=%s", code, msg.Message)
		}

	case methodJoinResponse:
		c.log.Infof("join response: code=%v msg=%s", msg.Code, msg.Message)

	case methodPeerIn:
		c.log.Infof("peer in: clientId=%s", msg.ClientID)
		c.mu.Lock()
		c.remoteID = msg.ClientID
		c.mu.Unlock()
		c.handler.OnPeerIn(msg.ClientID)

	case methodPeerOut:
		c.log.Infof("peer out: clientId=%s", msg.ClientID)
		c.handler.OnPeerOut(msg.ClientID)

	case methodTransmit:
		switch msg.MessageType {
		case typeSDPAnswer:
			var sdp domain.SDPPayload
			if err := decodePayload(msg.MessagePayload, &sdp); err != nil {
				c.log.Warnf("%s: %v", typeSDPAnswer, err)
				return
			}
			c.log.Info("received SDP answer")
			c.handler.OnSDPAnswer(sdp)

		case typeICECandidate:
			var candidate domain.ICECandidatePayload
			if err := decodePayload(msg.MessagePayload, &candidate); err != nil {
				c.log.Warnf("%s: %v", typeICECandidate, err)
				return
			}
			c.log.Debug("received remote ICE candidate")
			c.handler.OnRemoteICECandidate(candidate)

		default:
			c.log.Debugf("unhandled transmit type: %s", msg.MessageType)
		}

	case methodTransmitResponse:
		// no-op

	default:
		c.log.Debugf("unhandled method: %s", msg.Method)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
				default:
					c.log.Warnf("ping error: %v", err)
				}
				return
			}
		}
	}
}
