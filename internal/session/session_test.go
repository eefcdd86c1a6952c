package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"peer_client/native/internal/domain"
)

// mockSignaler records calls for verification.
type mockSignaler struct {
	joinCalled   bool
	sdpOfferSent string
}

func (m *mockSignaler) Connect(context.Context) error { return nil }
func (m *mockSignaler) SendJoin()                     { m.joinCalled = true }
func (m *mockSignaler) SendSDPOffer(sdp string)       { m.sdpOfferSent = sdp }
func (m *mockSignaler) SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string) {
}
func (m *mockSignaler) Close() {}

// mockPeer records calls for verification.
type mockPeer struct {
	offerSDP string
	offerErr error
	onTrack  func(domain.MediaSource)

	mu                sync.Mutex
	remoteDescSet     bool
	iceCandidateAdded bool
}

func (m *mockPeer) AddTransceivers() error                           { return nil }
func (m *mockPeer) SetOnTrack(onTrack func(domain.MediaSource))      { m.onTrack = onTrack }
func (m *mockPeer) SetOnICECandidate(send func(string, int, string)) {}
func (m *mockPeer) CreateOffer() (string, error)                     { return m.offerSDP, m.offerErr }
func (m *mockPeer) Close()                                           {}
func (m *mockPeer) SetRemoteDescription(sdp domain.SDPPayload) error {
	m.remoteDescSet = true
	return nil
}
func (m *mockPeer) AddRemoteICECandidate(candidate domain.ICECandidatePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iceCandidateAdded = true
	return nil
}

func (m *mockPeer) candidateAdded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iceCandidateAdded
}

// mockEngine records media engine calls in order.
type mockEngine struct {
	calls   []string
	loadErr error
}

func (m *mockEngine) CreatePlayback() error  { m.calls = append(m.calls, "create"); return nil }
func (m *mockEngine) ReleasePlayback() error { m.calls = append(m.calls, "release"); return nil }
func (m *mockEngine) LoadSource(src domain.MediaSource) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.calls = append(m.calls, "load:"+src.ID)
	return nil
}
func (m *mockEngine) Play() error  { m.calls = append(m.calls, "play"); return nil }
func (m *mockEngine) Pause() error { m.calls = append(m.calls, "pause"); return nil }
func (m *mockEngine) Stop() error  { m.calls = append(m.calls, "stop"); return nil }

func newTestSession(peer *mockPeer, engine *mockEngine, cancel context.CancelFunc) (*Session, *mockSignaler) {
	sig := &mockSignaler{}
	s := New(peer, engine, cancel, nil)
	s.SetSignaler(sig)
	return s, sig
}

func TestOnAuthSuccess_SendsJoin(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sig := newTestSession(&mockPeer{}, &mockEngine{}, cancel)

	s.OnAuthSuccess()

	if !sig.joinCalled {
		t.Error("expected SendJoin to be called")
	}
}

func TestOnPeerIn_CreatesOfferAndSends(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sig := newTestSession(&mockPeer{offerSDP: "v=0\r\ntest-sdp"}, &mockEngine{}, cancel)

	s.OnPeerIn("remote-1")

	if sig.sdpOfferSent != "v=0\r\ntest-sdp" {
		t.Errorf("expected SDP offer 'v=0\\r\\ntest-sdp', got %q", sig.sdpOfferSent)
	}
}

func TestOnPeerIn_OfferFailureCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, sig := newTestSession(&mockPeer{offerErr: errors.New("boom")}, &mockEngine{}, cancel)

	s.OnPeerIn("remote-1")

	if sig.sdpOfferSent != "" {
		t.Errorf("expected no offer, got %q", sig.sdpOfferSent)
	}
	if ctx.Err() == nil {
		t.Error("expected context to be cancelled")
	}
}

func TestOnPeerOut_CancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestSession(&mockPeer{}, &mockEngine{}, cancel)

	s.OnPeerOut("remote-1")

	select {
	case <-ctx.Done():
		// expected
	case <-time.After(100 * time.Millisecond):
		t.Error("expected context to be cancelled")
	}
}

func TestOnPeerOut_IgnoresOtherPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	peer := &mockPeer{}
	engine := &mockEngine{}
	s, _ := newTestSession(peer, engine, cancel)

	s.OnPeerIn("remote-1")
	peer.onTrack(domain.MediaSource{ID: "audio-1"})
	s.OnPeerOut("someone-else")

	if ctx.Err() != nil {
		t.Error("expected context to stay alive")
	}

	// A later track must not restart playback that is still running.
	peer.onTrack(domain.MediaSource{ID: "video-1"})

	s.OnPeerOut("remote-1")

	want := []string{"load:audio-1", "play", "load:video-1", "stop"}
	if len(engine.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, engine.calls)
	}
	for i := range want {
		if engine.calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], engine.calls[i])
		}
	}
	if ctx.Err() == nil {
		t.Error("expected context to be cancelled after the remote left")
	}
}

func TestOnTrack_LoadsAndPlaysOnce(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	peer := &mockPeer{}
	engine := &mockEngine{}
	newTestSession(peer, engine, cancel)

	if peer.onTrack == nil {
		t.Fatal("expected session to register a track handler")
	}
	peer.onTrack(domain.MediaSource{ID: "audio-1"})
	peer.onTrack(domain.MediaSource{ID: "video-1"})

	want := []string{"load:audio-1", "play", "load:video-1"}
	if len(engine.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, engine.calls)
	}
	for i := range want {
		if engine.calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], engine.calls[i])
		}
	}
}

func TestOnTrack_LoadFailureDoesNotPlay(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	peer := &mockPeer{}
	engine := &mockEngine{loadErr: errors.New("unsupported codec")}
	newTestSession(peer, engine, cancel)

	peer.onTrack(domain.MediaSource{ID: "video-1"})

	if len(engine.calls) != 0 {
		t.Errorf("expected no engine calls, got %v", engine.calls)
	}
}

func TestOnPeerOut_StopsPlayback(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	peer := &mockPeer{}
	engine := &mockEngine{}
	s, _ := newTestSession(peer, engine, cancel)

	s.OnPeerIn("remote-1")
	peer.onTrack(domain.MediaSource{ID: "video-1"})
	s.OnPeerOut("remote-1")

	last := engine.calls[len(engine.calls)-1]
	if last != "stop" {
		t.Errorf("expected playback to be stopped, calls were %v", engine.calls)
	}
}

func TestOnSDPAnswer_SetsRemoteDescription(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	peer := &mockPeer{}
	s, _ := newTestSession(peer, &mockEngine{}, cancel)

	s.OnSDPAnswer(domain.SDPPayload{Type: "answer", SDP: "v=0\r\nanswer-sdp"})

	if !peer.remoteDescSet {
		t.Error("expected SetRemoteDescription to be called")
	}
}

func TestOnRemoteICECandidate_AddsCandidate(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	peer := &mockPeer{}
	s, _ := newTestSession(peer, &mockEngine{}, cancel)

	s.OnRemoteICECandidate(domain.ICECandidatePayload{
		SDPMid:    "0",
		Candidate: "candidate:123",
	})

	deadline := time.Now().Add(time.Second)
	for !peer.candidateAdded() {
		if time.Now().After(deadline) {
			t.Fatal("expected AddRemoteICECandidate to be called")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
