package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/manifest"
)

func smallStress() stressConfig {
	return stressConfig{
		Runtimes:     2,
		Jobs:         2,
		Ops:          3000,
		Keys:         32,
		Seed:         7,
		CollectEvery: 500,
		MaxAllocSize: gc.DefaultMaxAllocSize,
	}
}

func TestStressMatchesModel(t *testing.T) {
	reports, err := runStress(context.Background(), smallStress(), manifest.Default())
	if err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Err != nil {
			t.Errorf("worker %d: %v", r.Worker, r.Err)
		}
		if r.Ops != 3000 {
			t.Errorf("worker %d ran %d ops, want 3000", r.Worker, r.Ops)
		}
		if r.Collections != 6 {
			t.Errorf("worker %d ran %d collections, want 6", r.Worker, r.Collections)
		}
		if r.Oversized != 0 {
			t.Errorf("worker %d made %d allocations above the limit", r.Worker, r.Oversized)
		}
		if r.HookChecks == 0 {
			t.Errorf("worker %d never checked the marker view", r.Worker)
		}
		if r.Adds == 0 || r.Erases == 0 || r.Pushes == 0 {
			t.Errorf("worker %d workload too narrow: %+v", r.Worker, r)
		}
	}
}

func TestStressIsDeterministic(t *testing.T) {
	conf := smallStress()
	conf.Runtimes = 1
	a, err := runStress(context.Background(), conf, manifest.Default())
	if err != nil {
		t.Fatal(err)
	}
	b, err := runStress(context.Background(), conf, manifest.Default())
	if err != nil {
		t.Fatal(err)
	}
	a[0].Runtime, b[0].Runtime = uuid.Nil, uuid.Nil
	if a[0] != b[0] {
		t.Errorf("same seed gave different runs:\n%+v\n%+v", a[0], b[0])
	}
}

func TestStressSmallAllocLimitHitsRangeErrors(t *testing.T) {
	conf := smallStress()
	conf.Runtimes = 1
	conf.Ops = 5000
	conf.MaxAllocSize = 1024
	reports, err := runStress(context.Background(), conf, manifest.Default())
	if err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if reports[0].RangeErrors == 0 {
		t.Error("expected range errors with a 1024 byte allocation limit")
	}
	if reports[0].Oversized != 0 {
		t.Errorf("%d allocations above the 1024 byte limit", reports[0].Oversized)
	}
}

func TestStressRejectsBadConfig(t *testing.T) {
	conf := smallStress()
	conf.Runtimes = 0
	if _, err := runStress(context.Background(), conf, manifest.Default()); err == nil {
		t.Error("expected error for zero runtimes")
	}
	conf = smallStress()
	conf.Keys = 0
	if _, err := runStress(context.Background(), conf, manifest.Default()); err == nil {
		t.Error("expected error for zero keys")
	}
}

func TestStressCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runStress(ctx, smallStress(), manifest.Default()); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestSnapshotsCanBeInspected(t *testing.T) {
	color.NoColor = true
	cfg = manifest.Default()
	dir := t.TempDir()

	conf := smallStress()
	conf.Runtimes = 1
	conf.SnapshotDir = dir
	if _, err := runStress(context.Background(), conf, cfg); err != nil {
		t.Fatalf("runStress: %v", err)
	}

	want := map[string]string{
		"worker0-props.jshp":    "properties:",
		"worker0-elements.jshp": "segments:",
		"worker0-symbols.jshp":  "occupancy:",
	}
	for name, field := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var out bytes.Buffer
		if err := inspect(&out, data); err != nil {
			t.Fatalf("inspect %s: %v", name, err)
		}
		if !strings.Contains(out.String(), field) {
			t.Errorf("inspect %s output lacks %q:\n%s", name, field, out.String())
		}
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	cfg = manifest.Default()
	if err := inspect(&bytes.Buffer{}, []byte("not a snapshot")); err == nil {
		t.Error("expected decode error")
	}
}

func TestPrintStressReports(t *testing.T) {
	color.NoColor = true
	reports, err := runStress(context.Background(), smallStress(), manifest.Default())
	var out bytes.Buffer
	printStressReports(&out, reports, err)
	if !strings.Contains(out.String(), "PASS: 2 runtimes") {
		t.Errorf("summary missing PASS line:\n%s", out.String())
	}
}
