package webrtc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"peer_client/native/internal/domain"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"
)

// PeerConfig configures a Peer.
type PeerConfig struct {
	// ICEServers come from the credential bundle, in the order it lists them.
	ICEServers []domain.ICEServer

	// LocalID labels the data channel and identifies us in peer messages.
	LocalID string

	// ConfID is announced to the remote peer once the data channel opens.
	ConfID string

	// LoggerFactory is shared with pion. Defaults to pion's default factory.
	LoggerFactory logging.LoggerFactory
}

// Peer wraps a Pion PeerConnection and DataChannel.
type Peer struct {
	pc      *pion.PeerConnection
	dc      *pion.DataChannel
	localID string
	confID  string
	log     logging.LeveledLogger

	remoteDescSet  chan struct{}
	remoteDescOnce sync.Once
}

var _ domain.Peer = (*Peer)(nil)

// ICEServers converts bundle descriptors into pion's form. Descriptor order
// and URL order within each descriptor are preserved.
func ICEServers(servers []domain.ICEServer) []pion.ICEServer {
	out := make([]pion.ICEServer, 0, len(servers))
	for _, s := range servers {
		urls := make([]string, len(s.URLs))
		copy(urls, s.URLs)
		server := pion.ICEServer{URLs: urls}
		if s.Username != "" || s.Credential != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = pion.ICECredentialTypePassword
		}
		out = append(out, server)
	}
	return out
}

// NewPeer creates a PeerConnection configured with the bundle's ICE servers and a DataChannel.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)
	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)

	se := pion.SettingEngine{LoggerFactory: lf}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   ICEServers(cfg.ICEServers),
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel(cfg.LocalID, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	p := &Peer{
		pc:            pc,
		dc:            dc,
		localID:       cfg.LocalID,
		confID:        cfg.ConfID,
		log:           lf.NewLogger("webrtc"),
		remoteDescSet: make(chan struct{}),
	}

	dc.OnOpen(func() {
		p.log.Info("data channel opened")
		p.sendHello()
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		p.log.Debugf("data channel message: %s", string(msg.Data))
	})
	dc.OnClose(func() {
		p.log.Info("data channel closed")
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Infof("ICE connection state: %s", state.String())
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Infof("peer connection state: %s", state.String())
	})

	return p, nil
}

// AddTransceivers adds receive-only audio and video transceivers.
func (p *Peer) AddTransceivers() error {
	_, err := p.pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}

	_, err = p.pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add video transceiver: %w", err)
	}

	return nil
}

// SetOnTrack hands every remote track to onTrack as a media source.
func (p *Peer) SetOnTrack(onTrack func(src domain.MediaSource)) {
	p.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		codec := track.Codec()
		p.log.Infof("got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

		onTrack(domain.MediaSource{
			ID:    track.ID(),
			Kind:  track.Kind().String(),
			Codec: codec.MimeType,
			Read: func(buf []byte) (int, error) {
				n, _, err := track.Read(buf)
				return n, err
			},
		})
	})
}

// SetOnICECandidate registers the callback for locally discovered ICE candidates.
func (p *Peer) SetOnICECandidate(send func(sdpMid string, sdpMLineIndex int, candidate string)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.log.Info("ICE gathering complete")
			return
		}

		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			p.log.Debug("filtering loopback ICE candidate")
			return
		}

		sdpMid := ""
		if init.SDPMid != nil {
			sdpMid = *init.SDPMid
		}
		sdpMLineIndex := 0
		if init.SDPMLineIndex != nil {
			sdpMLineIndex = int(*init.SDPMLineIndex)
		}

		p.log.Debugf("local ICE candidate: %s", init.Candidate)
		send(sdpMid, sdpMLineIndex, init.Candidate)
	})
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	p.log.Info("local SDP offer set")
	return offer.SDP, nil
}

// SetRemoteDescription sets the SDP answer and unblocks remote ICE candidate addition.
func (p *Peer) SetRemoteDescription(sdp domain.SDPPayload) error {
	answer := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  sdp.SDP,
	}

	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Info("remote SDP answer set")
	p.remoteDescOnce.Do(func() { close(p.remoteDescSet) })
	return nil
}

// AddRemoteICECandidate waits for the remote description to be set, then adds the candidate.
func (p *Peer) AddRemoteICECandidate(candidate domain.ICECandidatePayload) error {
	<-p.remoteDescSet

	sdpMLineIndex := uint16(candidate.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &candidate.SDPMid,
		SDPMLineIndex: &sdpMLineIndex,
	}

	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	p.log.Debug("added remote ICE candidate")
	return nil
}

func (p *Peer) sendHello() {
	data, _ := json.Marshal(domain.PeerMessage{
		Type: "hello",
		From: p.localID,
		Conf: p.confID,
	})
	p.log.Debugf("sending hello: %s", string(data))
	if err := p.dc.SendText(string(data)); err != nil {
		p.log.Warnf("send hello: %v", err)
	}
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() {
	if p.dc != nil {
		p.dc.Close()
	}
	if p.pc != nil {
		p.pc.Close()
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
