package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind tags an identifier with the system that minted it.
type Kind int

const (
	// KindLocal identifiers are minted on this device.
	KindLocal Kind = iota + 1
	// KindRemote identifiers are assigned by the remote system of record.
	KindRemote
)

// String returns the tag used in the text form.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ID is a tagged identifier. The zero value is invalid.
type ID struct {
	Kind  Kind
	Value string
}

// NewLocalID mints a fresh local identifier.
func NewLocalID() ID {
	return ID{Kind: KindLocal, Value: uuid.NewString()}
}

// LocalID wraps an existing local identifier value.
func LocalID(value string) ID {
	return ID{Kind: KindLocal, Value: value}
}

// RemoteID wraps a server-assigned identifier value.
func RemoteID(value string) ID {
	return ID{Kind: KindRemote, Value: value}
}

// ParseID parses the tagged text form "local:<v>" or "remote:<v>".
func ParseID(s string) (ID, error) {
	tag, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return ID{}, fmt.Errorf("invalid id %q: expected local:<value> or remote:<value>", s)
	}
	switch tag {
	case "local":
		return LocalID(value), nil
	case "remote":
		return RemoteID(value), nil
	default:
		return ID{}, fmt.Errorf("invalid id %q: unknown kind %q", s, tag)
	}
}

// IsZero reports whether id is unset.
func (id ID) IsZero() bool {
	return id.Kind == 0 && id.Value == ""
}

// IsLocal reports whether id was minted locally.
func (id ID) IsLocal() bool { return id.Kind == KindLocal }

// IsRemote reports whether id was assigned by the remote.
func (id ID) IsRemote() bool { return id.Kind == KindRemote }

// String returns the tagged text form.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.Kind.String() + ":" + id.Value
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
