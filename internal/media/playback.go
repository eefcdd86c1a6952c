// Package media adapts the platform playback engine boundary. Playback keeps
// the engine lifecycle and drains loaded sources so pion's receive buffers
// never fill; decoding and rendering stay behind the native engine.
package media

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"peer_client/native/internal/domain"

	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// ErrInvalidState is returned when an operation is not allowed in the
// current playback state.
var ErrInvalidState = errors.New("invalid playback state")

// State is the lifecycle state of a Playback.
type State int

const (
	StateReleased State = iota
	StateCreated
	StateLoaded
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateReleased:
		return "released"
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SourceStats counts the RTP packets seen on one source while playing.
type SourceStats struct {
	Kind      string
	Codec     string
	SSRC      uint32
	Packets   uint64
	Bytes     uint64
	Dropped   uint64
	LastSeq   uint16
	Malformed uint64
}

const readBufferSize = 1500

type source struct {
	src   domain.MediaSource
	stats SourceStats
}

// Playback implements domain.MediaEngine.
type Playback struct {
	log logging.LeveledLogger

	mu      sync.Mutex
	state   State
	sources map[string]*source
	wg      sync.WaitGroup
}

var _ domain.MediaEngine = (*Playback)(nil)

// NewPlayback creates a released playback engine.
func NewPlayback(lf logging.LoggerFactory) *Playback {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Playback{
		log:   lf.NewLogger("media"),
		state: StateReleased,
	}
}

// State returns the current lifecycle state.
func (p *Playback) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CreatePlayback allocates the engine. Allowed only when released.
func (p *Playback) CreatePlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReleased {
		return p.invalid("create")
	}
	p.sources = make(map[string]*source)
	p.state = StateCreated
	p.log.Debug("playback created")
	return nil
}

// ReleasePlayback frees the engine. It blocks until every drained source's
// reader has returned, so close the peer connection first.
func (p *Playback) ReleasePlayback() error {
	p.mu.Lock()
	if p.state == StateReleased {
		p.mu.Unlock()
		return p.invalid("release")
	}
	p.state = StateReleased
	p.sources = nil
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debug("playback released")
	return nil
}

// LoadSource adds a remote track. Sources loaded while playing start
// draining immediately.
func (p *Playback) LoadSource(src domain.MediaSource) error {
	if src.Read == nil {
		return fmt.Errorf("load source %q: no reader", src.ID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateCreated, StateLoaded, StatePlaying, StatePaused:
	default:
		return p.invalid("load")
	}
	if _, ok := p.sources[src.ID]; ok {
		return fmt.Errorf("load source %q: already loaded", src.ID)
	}

	s := &source{
		src:   src,
		stats: SourceStats{Kind: src.Kind, Codec: src.Codec},
	}
	p.sources[src.ID] = s
	p.log.Infof("loaded source %s (%s %s)", src.ID, src.Kind, src.Codec)

	switch p.state {
	case StateCreated:
		p.state = StateLoaded
	case StatePlaying, StatePaused:
		p.startLocked(s)
	}
	return nil
}

// Play starts or resumes playback.
func (p *Playback) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateLoaded:
		for _, s := range p.sources {
			p.startLocked(s)
		}
	case StatePaused:
	default:
		return p.invalid("play")
	}
	p.state = StatePlaying
	p.log.Info("playing")
	return nil
}

// Pause keeps draining sources but stops counting their packets.
func (p *Playback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return p.invalid("pause")
	}
	p.state = StatePaused
	p.log.Info("paused")
	return nil
}

// Stop ends playback. The engine must be released afterwards.
func (p *Playback) Stop() error {
	p.mu.Lock()
	switch p.state {
	case StateLoaded, StatePlaying, StatePaused:
	default:
		p.mu.Unlock()
		return p.invalid("stop")
	}
	p.state = StateStopped
	p.mu.Unlock()

	p.log.Info("stopped")
	return nil
}

// Stats returns a snapshot of per-source statistics keyed by source ID.
func (p *Playback) Stats() map[string]SourceStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]SourceStats, len(p.sources))
	for id, s := range p.sources {
		out[id] = s.stats
	}
	return out
}

func (p *Playback) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, p.state)
}

// startLocked must be called with p.mu held.
func (p *Playback) startLocked(s *source) {
	p.wg.Add(1)
	go p.drain(s)
}

func (p *Playback) drain(s *source) {
	defer p.wg.Done()

	buf := make([]byte, readBufferSize)
	var pkt rtp.Packet
	for {
		n, err := s.src.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Debugf("source %s read: %v", s.src.ID, err)
			}
			return
		}

		p.mu.Lock()
		state := p.state
		if state == StateStopped || state == StateReleased {
			p.mu.Unlock()
			return
		}
		if state == StatePaused {
			s.stats.Dropped++
			p.mu.Unlock()
			continue
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.stats.Malformed++
			p.mu.Unlock()
			continue
		}
		s.stats.SSRC = pkt.SSRC
		s.stats.LastSeq = pkt.SequenceNumber
		s.stats.Packets++
		s.stats.Bytes += uint64(len(pkt.Payload))
		p.mu.Unlock()
	}
}
