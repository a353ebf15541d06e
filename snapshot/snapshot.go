// Package snapshot persists property maps, segmented arrays and symbol
// tables as opaque versioned blobs.
//
// A blob is the 4-byte magic, one codec byte, then an envelope encoded
// with that codec. The envelope carries the format version, a snapshot
// id, the id of the runtime that wrote it, the payload kind, an xxh3
// checksum and the payload itself. Loading re-validates every structural
// invariant through the owning package's Import.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Magic opens every snapshot blob.
const Magic = "JSHP"

// Version is the current envelope format version.
const Version = 1

// Kind names the structure a snapshot holds.
type Kind uint8

const (
	KindPropertyMap Kind = iota + 1
	KindArray
	KindSymbols
)

func (k Kind) String() string {
	switch k {
	case KindPropertyMap:
		return "property-map"
	case KindArray:
		return "array"
	case KindSymbols:
		return "symbols"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var (
	ErrBadMagic = errors.New("snapshot: not a snapshot blob")
	ErrVersion  = errors.New("snapshot: unsupported version")
	ErrChecksum = errors.New("snapshot: payload checksum mismatch")
	ErrKind     = errors.New("snapshot: unexpected payload kind")
)

// Envelope is a decoded snapshot.
type Envelope struct {
	Version  uint16 `cbor:"v" msgpack:"v"`
	ID       string `cbor:"id" msgpack:"id"`
	Runtime  string `cbor:"rt" msgpack:"rt"`
	Kind     Kind   `cbor:"k" msgpack:"k"`
	Checksum uint64 `cbor:"x" msgpack:"x"`
	Payload  []byte `cbor:"p" msgpack:"p"`

	Codec Codec `cbor:"-" msgpack:"-"`
}

// Encode wraps v, encoded with codec, in a new envelope.
func Encode(codec Codec, kind Kind, runtime uuid.UUID, v any) ([]byte, error) {
	payload, err := codec.marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %s payload: %w", kind, err)
	}
	env := Envelope{
		Version:  Version,
		ID:       uuid.New().String(),
		Runtime:  runtime.String(),
		Kind:     kind,
		Checksum: xxh3.Hash(payload),
		Payload:  payload,
	}
	body, err := codec.marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode envelope: %w", err)
	}
	out := make([]byte, 0, len(Magic)+1+len(body))
	out = append(out, Magic...)
	out = append(out, byte(codec))
	return append(out, body...), nil
}

// Decode parses and verifies a blob without decoding its payload.
func Decode(data []byte) (*Envelope, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	codec := Codec(data[len(Magic)])
	var env Envelope
	if err := codec.unmarshal(data[len(Magic)+1:], &env); err != nil {
		return nil, fmt.Errorf("snapshot: decode envelope: %w", err)
	}
	env.Codec = codec
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, env.Version)
	}
	if xxh3.Hash(env.Payload) != env.Checksum {
		return nil, ErrChecksum
	}
	if _, err := uuid.Parse(env.ID); err != nil {
		return nil, fmt.Errorf("snapshot: bad snapshot id: %w", err)
	}
	return &env, nil
}

// Into decodes the payload into v after checking its kind.
func (e *Envelope) Into(kind Kind, v any) error {
	if e.Kind != kind {
		return fmt.Errorf("%w: have %s, want %s", ErrKind, e.Kind, kind)
	}
	if err := e.Codec.unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("snapshot: decode %s payload: %w", kind, err)
	}
	return nil
}

// Header is the printable summary of an envelope.
type Header struct {
	Version     uint16
	ID          string
	Runtime     string
	Kind        Kind
	Codec       Codec
	PayloadSize int
}

// Header summarizes the envelope.
func (e *Envelope) Header() Header {
	return Header{
		Version:     e.Version,
		ID:          e.ID,
		Runtime:     e.Runtime,
		Kind:        e.Kind,
		Codec:       e.Codec,
		PayloadSize: len(e.Payload),
	}
}
