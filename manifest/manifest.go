// Package manifest handles jsheap.toml runtime configuration.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/handles"
	"github.com/chazu/jsheap/snapshot"
	"github.com/chazu/jsheap/symbols"
	"github.com/chazu/jsheap/vm"
)

// FileName is the name Load and FindAndLoad look for.
const FileName = "jsheap.toml"

// Manifest represents a jsheap.toml configuration.
type Manifest struct {
	Heap     HeapConfig     `toml:"heap"`
	Handles  HandlesConfig  `toml:"handles"`
	Symbols  SymbolsConfig  `toml:"symbols"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Log      LogConfig      `toml:"log"`

	// Dir is the directory containing the jsheap.toml file (set at load time).
	Dir string `toml:"-"`
}

// HeapConfig configures allocation limits.
type HeapConfig struct {
	MaxAllocSize uint32 `toml:"max-alloc-size"`
}

// HandlesConfig configures the handle stack.
type HandlesConfig struct {
	ChunkSize   int  `toml:"chunk-size"`
	HandleLimit int  `toml:"handle-limit"`
	SlowChecks  bool `toml:"slow-checks"`
}

// SymbolsConfig configures the symbol table.
type SymbolsConfig struct {
	InitialCapacity int `toml:"initial-capacity"`
}

// SnapshotConfig configures snapshot output.
type SnapshotConfig struct {
	Codec string `toml:"codec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no jsheap.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Heap.MaxAllocSize == 0 {
		m.Heap.MaxAllocSize = gc.DefaultMaxAllocSize
	}
	if m.Handles.ChunkSize == 0 {
		m.Handles.ChunkSize = handles.DefaultChunkSize
	}
	if m.Symbols.InitialCapacity == 0 {
		m.Symbols.InitialCapacity = symbols.DefaultCapacity
	}
	if m.Snapshot.Codec == "" {
		m.Snapshot.Codec = snapshot.CodecCBOR.String()
	}
}

// Validate reports settings no runtime could start with.
func (m *Manifest) Validate() error {
	if m.Heap.MaxAllocSize < 1024 {
		return fmt.Errorf("heap.max-alloc-size %d is below 1024", m.Heap.MaxAllocSize)
	}
	if m.Handles.ChunkSize < 1 {
		return fmt.Errorf("handles.chunk-size %d must be positive", m.Handles.ChunkSize)
	}
	if m.Handles.HandleLimit < 0 {
		return fmt.Errorf("handles.handle-limit %d is negative", m.Handles.HandleLimit)
	}
	if _, err := snapshot.ParseCodec(m.Snapshot.Codec); err != nil {
		return err
	}
	return nil
}

// Load parses a jsheap.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a jsheap.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// RuntimeOptions converts the configuration to vm.Options.
func (m *Manifest) RuntimeOptions() vm.Options {
	return vm.Options{
		MaxAllocSize: m.Heap.MaxAllocSize,
		Handles: handles.Options{
			ChunkSize:   m.Handles.ChunkSize,
			HandleLimit: m.Handles.HandleLimit,
			SlowChecks:  m.Handles.SlowChecks,
		},
		SymbolCapacity: m.Symbols.InitialCapacity,
	}
}

// Codec returns the configured snapshot codec.
func (m *Manifest) Codec() snapshot.Codec {
	c, err := snapshot.ParseCodec(m.Snapshot.Codec)
	if err != nil {
		return snapshot.CodecCBOR
	}
	return c
}

// LogFile returns the configured log file, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}

// Write encodes the manifest as TOML.
func (m *Manifest) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(m)
}
