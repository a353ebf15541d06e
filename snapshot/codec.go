package snapshot

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec selects the encoding of a snapshot.
type Codec uint8

const (
	CodecCBOR Codec = iota + 1
	CodecMsgpack
)

func (c Codec) String() string {
	switch c {
	case CodecCBOR:
		return "cbor"
	case CodecMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// ParseCodec parses a codec name as written in configuration.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "cbor", "":
		return CodecCBOR, nil
	case "msgpack":
		return CodecMsgpack, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown codec %q", s)
	}
}

// cborEncMode uses canonical mode so equal values encode identically.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func (c Codec) marshal(v any) ([]byte, error) {
	switch c {
	case CodecCBOR:
		return cborEncMode.Marshal(v)
	case CodecMsgpack:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("snapshot: unknown codec %d", uint8(c))
	}
}

func (c Codec) unmarshal(data []byte, v any) error {
	switch c {
	case CodecCBOR:
		return cbor.Unmarshal(data, v)
	case CodecMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("snapshot: unknown codec %d", uint8(c))
	}
}
