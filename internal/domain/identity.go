package domain

import "fmt"

// UnknownHost is the local ID used when the host name cannot be determined.
const UnknownHost = "<unknown host>"

// ClientIdentity is the application and session identity presented to the
// authentication service. ConfID and LocalID may be empty.
type ClientIdentity struct {
	AppID   string
	KeyID   string
	Secret  string
	ConfID  string
	LocalID string
}

// Validate checks that the application credentials are present.
func (id ClientIdentity) Validate() error {
	switch {
	case id.AppID == "":
		return fmt.Errorf("%w: appID is empty", ErrInvalidIdentity)
	case id.KeyID == "":
		return fmt.Errorf("%w: keyID is empty", ErrInvalidIdentity)
	case id.Secret == "":
		return fmt.Errorf("%w: secret is empty", ErrInvalidIdentity)
	}
	return nil
}
