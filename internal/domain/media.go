package domain

// MediaSource is a remote track handed to the media engine. Read returns one
// raw RTP packet per call.
type MediaSource struct {
	ID    string
	Kind  string
	Codec string
	Read  func(buf []byte) (int, error)
}
