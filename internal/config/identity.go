package config

import (
	"bufio"
	"os"
	"strings"

	"peer_client/native/internal/domain"

	"github.com/google/uuid"
)

// Keys read from the identity file.
const (
	keyAppID  = "appID"
	keyKeyID  = "keyID"
	keySecret = "secret"
)

// IdentityStore supplies the client identity from a "key = value" file.
// The conference ID is generated once per store, so it stays stable for the
// lifetime of the process that created it.
type IdentityStore struct {
	path     string
	confID   string
	hostname func() (string, error)
}

var _ domain.IdentityProvider = (*IdentityStore)(nil)

// NewIdentityStore creates a store reading from path.
func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{
		path:     path,
		confID:   uuid.NewString(),
		hostname: os.Hostname,
	}
}

// GetIdentity returns the identity. A missing or unreadable file yields
// empty app credentials rather than an error.
func (s *IdentityStore) GetIdentity() domain.ClientIdentity {
	values := s.readFile()
	return domain.ClientIdentity{
		AppID:   values[keyAppID],
		KeyID:   values[keyKeyID],
		Secret:  values[keySecret],
		ConfID:  s.confID,
		LocalID: s.localID(),
	}
}

// readFile parses one "key = value" pair per line. Values are taken
// literally apart from surrounding whitespace. Blank lines, lines starting
// with '#' and lines without '=' are skipped.
func (s *IdentityStore) readFile() map[string]string {
	f, err := os.Open(s.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values
}

func (s *IdentityStore) localID() string {
	name, err := s.hostname()
	if err != nil || name == "" {
		return domain.UnknownHost
	}
	return strings.ToLower(name)
}
