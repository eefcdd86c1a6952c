package session

import (
	"context"
	"sync"

	"peer_client/native/internal/domain"

	"github.com/pion/logging"
)

// Session coordinates the signaling, WebRTC and media flows for one
// conference. It implements domain.Handler.
type Session struct {
	peer   domain.Peer
	engine domain.MediaEngine
	signal domain.Signaler
	cancel context.CancelFunc
	log    logging.LeveledLogger

	mu      sync.Mutex
	remote  string
	playing bool
}

var _ domain.Handler = (*Session)(nil)

// New creates a Session. The media engine must already be created.
// Call SetSignaler before use to complete the circular dependency.
func New(peer domain.Peer, engine domain.MediaEngine, cancel context.CancelFunc, lf logging.LoggerFactory) *Session {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	s := &Session{
		peer:   peer,
		engine: engine,
		cancel: cancel,
		log:    lf.NewLogger("session"),
	}
	peer.SetOnTrack(s.onTrack)
	return s
}

// SetSignaler injects the signaler after construction to resolve the
// circular dependency (Session needs Signaler, Signaler needs Handler).
func (s *Session) SetSignaler(sig domain.Signaler) {
	s.signal = sig
}

// OnAuthSuccess joins the conference once signaling has accepted the
// access token.
func (s *Session) OnAuthSuccess() {
	s.log.Info("authenticated, joining conference")
	s.signal.SendJoin()
}

// OnPeerIn records peerID as the remote peer and sends it an SDP offer.
// A failed offer ends the session.
func (s *Session) OnPeerIn(peerID string) {
	s.mu.Lock()
	s.remote = peerID
	s.mu.Unlock()

	s.log.Infof("peer %s in, creating offer", peerID)

	sdp, err := s.peer.CreateOffer()
	if err != nil {
		s.log.Errorf("create offer: %v", err)
		s.cancel()
		return
	}
	s.signal.SendSDPOffer(sdp)
}

// OnPeerOut stops playback and ends the session when the remote peer
// leaves. Departures of other peers are ignored.
func (s *Session) OnPeerOut(peerID string) {
	s.mu.Lock()
	if s.remote != "" && peerID != s.remote {
		s.mu.Unlock()
		s.log.Debugf("ignoring peer out for %s", peerID)
		return
	}
	playing := s.playing
	s.playing = false
	s.mu.Unlock()

	s.log.Infof("peer %s out, shutting down", peerID)
	if playing {
		if err := s.engine.Stop(); err != nil {
			s.log.Warnf("stop playback: %v", err)
		}
	}
	s.cancel()
}

// OnSDPAnswer applies the remote answer to the peer connection.
func (s *Session) OnSDPAnswer(sdp domain.SDPPayload) {
	if err := s.peer.SetRemoteDescription(sdp); err != nil {
		s.log.Errorf("set remote description: %v", err)
	}
}

// OnRemoteICECandidate adds the candidate without blocking the signaling
// read loop.
func (s *Session) OnRemoteICECandidate(candidate domain.ICECandidatePayload) {
	go func() {
		if err := s.peer.AddRemoteICECandidate(candidate); err != nil {
			s.log.Warnf("add remote ICE candidate: %v", err)
		}
	}()
}

// onTrack loads each remote track into the engine and starts playback on
// the first one.
func (s *Session) onTrack(src domain.MediaSource) {
	if err := s.engine.LoadSource(src); err != nil {
		s.log.Errorf("load source %s: %v", src.ID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	if err := s.engine.Play(); err != nil {
		s.log.Errorf("play: %v", err)
		return
	}
	s.playing = true
}
