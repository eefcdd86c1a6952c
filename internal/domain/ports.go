package domain

import "context"

// CredentialResolver exchanges a client identity for a credential bundle.
type CredentialResolver interface {
	Resolve(ctx context.Context, id ClientIdentity) (*CredentialBundle, error)
}

// IdentityProvider supplies the client identity, read once at startup.
type IdentityProvider interface {
	GetIdentity() ClientIdentity
}

// MediaEngine is the playback engine behind the platform plugin boundary.
type MediaEngine interface {
	CreatePlayback() error
	ReleasePlayback() error
	LoadSource(src MediaSource) error
	Play() error
	Pause() error
	Stop() error
}

// Signaler manages the WebSocket signaling connection.
type Signaler interface {
	Connect(ctx context.Context) error
	SendJoin()
	SendSDPOffer(sdp string)
	SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string)
	Close()
}

// Handler receives signaling events.
type Handler interface {
	OnAuthSuccess()
	OnPeerIn(peerID string)
	OnPeerOut(peerID string)
	OnSDPAnswer(sdp SDPPayload)
	OnRemoteICECandidate(candidate ICECandidatePayload)
}

// Peer manages the WebRTC peer connection.
type Peer interface {
	AddTransceivers() error
	SetOnTrack(onTrack func(src MediaSource))
	SetOnICECandidate(send func(sdpMid string, sdpMLineIndex int, candidate string))
	CreateOffer() (string, error)
	SetRemoteDescription(sdp SDPPayload) error
	AddRemoteICECandidate(candidate ICECandidatePayload) error
	Close()
}
