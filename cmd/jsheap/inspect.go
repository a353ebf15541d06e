package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Decode a snapshot and print its header and contents summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return inspect(cmd.OutOrStdout(), data)
	},
}

var labelColor = color.New(color.Bold)

func inspect(out io.Writer, data []byte) error {
	env, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	h := env.Header()
	field := func(name string, v any) {
		fmt.Fprintf(out, "%-14s %v\n", labelColor.Sprint(name+":"), v)
	}
	field("id", h.ID)
	field("runtime", h.Runtime)
	field("version", h.Version)
	field("kind", h.Kind)
	field("codec", h.Codec)
	field("payload", fmt.Sprintf("%d bytes", h.PayloadSize))

	// Loading re-validates the structure, not only the checksum.
	c := gc.NopCollector{MaxAlloc: cfg.Heap.MaxAllocSize}
	switch h.Kind {
	case snapshot.KindPropertyMap:
		m, err := snapshot.LoadPropertyMap(c, data)
		if err != nil {
			return err
		}
		field("properties", m.Size())
		field("descriptors", m.NumDescriptors())
		field("deleted", m.DeletedCount())
		field("capacity", m.Capacity())
		field("hash size", m.HashCapacity())
	case snapshot.KindArray:
		a, err := snapshot.LoadArray(c, data)
		if err != nil {
			return err
		}
		field("size", a.Size())
		field("capacity", a.Capacity())
		field("segments", a.NumSegments())
	case snapshot.KindSymbols:
		t, err := snapshot.LoadSymbols(data)
		if err != nil {
			return err
		}
		field("symbols", t.Len())
		field("capacity", t.Capacity())
		field("occupancy", fmt.Sprintf("%.2f", t.Occupancy()))
	}
	return nil
}
