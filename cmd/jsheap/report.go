package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	passColor   = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.FgCyan)
	dimColor    = color.New(color.Faint)
)

func printStressReports(out io.Writer, reports []stressReport, err error) {
	headerColor.Fprintf(out, "%-6s %-8s %8s %6s %6s %7s %7s %6s %8s %5s %9s %10s\n",
		"worker", "runtime", "ops", "props", "elems", "segments", "range", "gcs", "barriers", "hooks", "allocs", "bytes")

	var total stressReport
	failed := 0
	for _, r := range reports {
		if r.Runtime == uuid.Nil && r.Ops == 0 && r.Err == nil {
			// Cancelled before it started.
			continue
		}
		status := passColor.Sprint("ok")
		if r.Err != nil {
			status = failColor.Sprint("FAIL")
			failed++
		}
		fmt.Fprintf(out, "%-6d %-8s %8d %6d %6d %7d %7d %6d %8d %5d %9d %10d %s\n",
			r.Worker, r.Runtime.String()[:8], r.Ops, r.Properties, r.Elements, r.Segments,
			r.RangeErrors, r.Collections, r.Barriers, r.HookChecks, r.Allocations, r.AllocatedBytes, status)
		if r.Err != nil {
			failColor.Fprintf(out, "       %v\n", r.Err)
		}
		total.Ops += r.Ops
		total.Adds += r.Adds
		total.Updates += r.Updates
		total.Erases += r.Erases
		total.Pushes += r.Pushes
		total.Resizes += r.Resizes
		total.Shifts += r.Shifts
		total.Unshifts += r.Unshifts
		total.HookChecks += r.HookChecks
	}

	dimColor.Fprintf(out, "adds %d, updates %d, erases %d, pushes %d, resizes %d, shifts %d, unshifts %d, marker checks %d\n",
		total.Adds, total.Updates, total.Erases, total.Pushes, total.Resizes, total.Shifts, total.Unshifts, total.HookChecks)
	switch {
	case err != nil || failed > 0:
		failColor.Fprintf(out, "FAIL: %d of %d runtimes failed\n", max(failed, 1), len(reports))
	default:
		passColor.Fprintf(out, "PASS: %d runtimes, %d operations\n", len(reports), total.Ops)
	}
}
