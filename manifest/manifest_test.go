package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/handles"
	"github.com/chazu/jsheap/snapshot"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[heap]
max-alloc-size = 65536

[handles]
chunk-size = 32
handle-limit = 1000
slow-checks = true

[symbols]
initial-capacity = 128

[snapshot]
codec = "msgpack"

[log]
verbosity = 2
file = "jsheap.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Heap.MaxAllocSize != 65536 {
		t.Errorf("max-alloc-size = %d, want 65536", m.Heap.MaxAllocSize)
	}
	if m.Handles.ChunkSize != 32 || m.Handles.HandleLimit != 1000 || !m.Handles.SlowChecks {
		t.Errorf("handles = %+v", m.Handles)
	}
	if m.Symbols.InitialCapacity != 128 {
		t.Errorf("initial-capacity = %d, want 128", m.Symbols.InitialCapacity)
	}
	if m.Codec() != snapshot.CodecMsgpack {
		t.Errorf("codec = %v, want msgpack", m.Codec())
	}
	if got := m.LogFile(); got == nil || *got != filepath.Join(m.Dir, "jsheap.log") {
		t.Errorf("log file = %v", got)
	}

	opts := m.RuntimeOptions()
	if opts.MaxAllocSize != 65536 || opts.Handles.ChunkSize != 32 || !opts.Handles.SlowChecks {
		t.Errorf("runtime options = %+v", opts)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[log]\nverbosity = 1\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Heap.MaxAllocSize != gc.DefaultMaxAllocSize {
		t.Errorf("max-alloc-size = %d", m.Heap.MaxAllocSize)
	}
	if m.Handles.ChunkSize != handles.DefaultChunkSize {
		t.Errorf("chunk-size = %d", m.Handles.ChunkSize)
	}
	if m.Codec() != snapshot.CodecCBOR {
		t.Errorf("codec = %v", m.Codec())
	}
	if m.LogFile() != nil {
		t.Error("default log file should be stderr")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"tiny heap":    "[heap]\nmax-alloc-size = 16\n",
		"bad codec":    "[snapshot]\ncodec = \"json\"\n",
		"negative":     "[handles]\nhandle-limit = -1\n",
		"syntax error": "[heap\n",
		"wrong type":   "[heap]\nmax-alloc-size = \"big\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, content)
			if _, err := Load(dir); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[symbols]\ninitial-capacity = 16\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Symbols.InitialCapacity != 16 {
		t.Errorf("initial-capacity = %d", m.Symbols.InitialCapacity)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Skipf("a %s exists above the temp dir: %s", FileName, m.Dir)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	m := Default()
	m.Handles.SlowChecks = true
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeManifest(t, dir, buf.String())
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load of written manifest failed: %v\n%s", err, buf.String())
	}
	got.Dir = ""
	if *got != *m {
		t.Errorf("round trip = %+v, want %+v", got, m)
	}
}
