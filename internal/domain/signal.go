package domain

// SDPPayload is the JSON structure for SDP offer/answer messages.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// PeerMessage is exchanged over the peer data channel once it opens.
type PeerMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
	Conf string `json:"conf,omitempty"`
}
