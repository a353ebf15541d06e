package snapshot

import (
	"github.com/google/uuid"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/propmap"
	"github.com/chazu/jsheap/segarray"
	"github.com/chazu/jsheap/symbols"
)

// SavePropertyMap encodes m's raw storage.
func SavePropertyMap(codec Codec, runtime uuid.UUID, m *propmap.Map) ([]byte, error) {
	raw := m.Export()
	return Encode(codec, KindPropertyMap, runtime, &raw)
}

// LoadPropertyMap decodes and validates a property map snapshot.
func LoadPropertyMap(c gc.Collector, data []byte) (*propmap.Map, error) {
	env, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var raw propmap.Raw
	if err := env.Into(KindPropertyMap, &raw); err != nil {
		return nil, err
	}
	return propmap.Import(c, raw)
}

// SaveArray encodes a's raw storage.
func SaveArray(codec Codec, runtime uuid.UUID, a *segarray.Array) ([]byte, error) {
	raw := a.Export()
	return Encode(codec, KindArray, runtime, &raw)
}

// LoadArray decodes and validates a segmented array snapshot.
func LoadArray(c gc.Collector, data []byte) (*segarray.Array, error) {
	env, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var raw segarray.Raw
	if err := env.Into(KindArray, &raw); err != nil {
		return nil, err
	}
	return segarray.Import(c, raw)
}

// SaveSymbols encodes t's lookup vector.
func SaveSymbols(codec Codec, runtime uuid.UUID, t *symbols.Table) ([]byte, error) {
	raw := t.Export()
	return Encode(codec, KindSymbols, runtime, &raw)
}

// LoadSymbols decodes and validates a symbol table snapshot.
func LoadSymbols(data []byte) (*symbols.Table, error) {
	env, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var raw symbols.Raw
	if err := env.Into(KindSymbols, &raw); err != nil {
		return nil, err
	}
	return symbols.Import(raw)
}
