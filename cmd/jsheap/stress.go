package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/manifest"
	"github.com/chazu/jsheap/snapshot"
	"github.com/chazu/jsheap/symbols"
	"github.com/chazu/jsheap/value"
	"github.com/chazu/jsheap/vm"
)

func log() commonlog.Logger { return commonlog.GetLogger("jsheap.stress") }

type stressConfig struct {
	Runtimes     int
	Jobs         int
	Ops          int
	Keys         int
	Seed         uint64
	CollectEvery int
	MaxAllocSize uint32
	SnapshotDir  string
}

var stressConf stressConfig

func init() {
	f := stressCmd.Flags()
	f.IntVarP(&stressConf.Runtimes, "runtimes", "n", 4, "number of independent runtimes")
	f.IntVarP(&stressConf.Jobs, "jobs", "j", runtime.NumCPU(), "maximum runtimes running at once")
	f.IntVar(&stressConf.Ops, "ops", 20000, "operations per runtime")
	f.IntVar(&stressConf.Keys, "keys", 256, "distinct property names per runtime")
	f.Uint64Var(&stressConf.Seed, "seed", 1, "random seed")
	f.IntVar(&stressConf.CollectEvery, "collect-every", 1000, "run the post-collection hook every N operations (0 disables)")
	f.Uint32Var(&stressConf.MaxAllocSize, "max-alloc", 0, "override heap.max-alloc-size")
	f.StringVar(&stressConf.SnapshotDir, "snapshot-dir", "", "write each runtime's final structures as snapshots into this directory")
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run randomized workloads against parallel runtimes and check them against a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := stressConf
		if conf.MaxAllocSize == 0 {
			conf.MaxAllocSize = cfg.Heap.MaxAllocSize
		}
		reports, err := runStress(cmd.Context(), conf, cfg)
		printStressReports(cmd.OutOrStdout(), reports, err)
		return err
	},
}

type stressReport struct {
	Worker  int
	Runtime uuid.UUID

	Ops         int
	Adds        int
	Updates     int
	Erases      int
	Pushes      int
	Resizes     int
	Shifts      int
	Unshifts    int
	RangeErrors int
	Collections int
	HookChecks  int

	Properties uint32
	Elements   uint32
	Segments   int

	Barriers       int
	Allocations    int
	AllocatedBytes uint64
	Oversized      int

	Err error
}

// runStress runs conf.Runtimes workers and returns one report per worker,
// including the ones that failed.
func runStress(ctx context.Context, conf stressConfig, m *manifest.Manifest) ([]stressReport, error) {
	if conf.Runtimes < 1 {
		return nil, fmt.Errorf("--runtimes must be at least 1")
	}
	if conf.Keys < 1 {
		return nil, fmt.Errorf("--keys must be at least 1")
	}
	if conf.SnapshotDir != "" {
		if err := os.MkdirAll(conf.SnapshotDir, 0o755); err != nil {
			return nil, err
		}
	}

	reports := make([]stressReport, conf.Runtimes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(conf.Jobs, conf.Runtimes)))
	for i := range conf.Runtimes {
		g.Go(func() error {
			w, err := newWorker(i, conf, m)
			if err != nil {
				reports[i] = stressReport{Worker: i, Err: err}
				return err
			}
			err = w.run(gctx)
			if err == nil && conf.SnapshotDir != "" {
				err = w.writeSnapshots(conf.SnapshotDir, m.Codec())
			}
			w.report.Err = err
			reports[i] = w.report
			return err
		})
	}
	return reports, g.Wait()
}

// worker drives one runtime and mirrors every mutation in a plain Go model.
type worker struct {
	conf stressConfig
	rng  *rand.Rand
	rec  *gc.Recorder
	rt   *vm.Runtime
	obj  *vm.Object
	arr  *vm.Object

	keys  []symbols.SymbolID
	props map[symbols.SymbolID]value.Value
	elems []value.Value

	report  stressReport
	hookErr error
}

func newWorker(idx int, conf stressConfig, m *manifest.Manifest) (*worker, error) {
	rec := &gc.Recorder{MaxAlloc: conf.MaxAllocSize}
	opts := m.RuntimeOptions()
	opts.Collector = rec
	rt := vm.NewRuntime(opts)

	obj, err := rt.NewObject(value.Null)
	if err != nil {
		return nil, err
	}
	arr, err := rt.NewArray()
	if err != nil {
		return nil, err
	}
	w := &worker{
		conf:   conf,
		rng:    rand.New(rand.NewPCG(conf.Seed, uint64(idx))),
		rec:    rec,
		rt:     rt,
		obj:    obj,
		arr:    arr,
		props:  make(map[symbols.SymbolID]value.Value),
		report: stressReport{Worker: idx, Runtime: rt.ID},
	}
	rec.OnAllocate = w.checkMarkerView
	return w, nil
}

// checkMarkerView runs at every allocation, the points where a concurrent
// marker could observe the structures mid-mutation.
func (w *worker) checkMarkerView(uint32) {
	if w.hookErr != nil {
		return
	}
	w.report.HookChecks++
	if m := w.obj.Properties(); m != nil {
		m.ForEachSymbolConcurrent(func(id symbols.SymbolID) {
			if w.hookErr == nil && !w.rt.Symbols.IsLive(id) {
				w.hookErr = fmt.Errorf("marker saw dead symbol %v", id)
			}
		})
	}
	if a := w.arr.Elements(); a != nil {
		a.ForEachConcurrent(func(i uint32, v value.Value) {
			if w.hookErr == nil && v.Kind() == value.KindInvalid {
				w.hookErr = fmt.Errorf("marker saw invalid element at %d", i)
			}
		})
	}
}

func (w *worker) run(ctx context.Context) error {
	log().Debugf("worker %d: runtime %s, %d ops", w.report.Worker, w.rt.ID, w.conf.Ops)
	for i := 0; i < w.conf.Ops; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := w.step(i); err != nil {
			return fmt.Errorf("worker %d, op %d: %w", w.report.Worker, i, err)
		}
		if w.hookErr != nil {
			return fmt.Errorf("worker %d, op %d: %w", w.report.Worker, i, w.hookErr)
		}
		w.report.Ops++
		if w.conf.CollectEvery > 0 && (i+1)%w.conf.CollectEvery == 0 {
			w.rt.AfterCollection()
			if err := w.verify(); err != nil {
				return fmt.Errorf("worker %d, after collection %d: %w", w.report.Worker, w.rt.Collections(), err)
			}
		}
	}
	if err := w.verify(); err != nil {
		return fmt.Errorf("worker %d: %w", w.report.Worker, err)
	}
	w.finish()
	if w.rec.Oversized > 0 {
		return fmt.Errorf("worker %d: %d allocations above the %d byte limit, largest %d",
			w.report.Worker, w.rec.Oversized, w.rec.MaxAllocSize(), w.rec.LargestAllocation)
	}
	log().Infof("worker %d: %d ops, %d properties, %d elements", w.report.Worker, w.report.Ops, w.report.Properties, w.report.Elements)
	return nil
}

func (w *worker) step(i int) error {
	v := value.EncodeInt32(int32(i))
	switch r := w.rng.IntN(100); {
	case r < 35:
		return w.put(v)
	case r < 50:
		return w.erase()
	case r < 85:
		return w.push(v)
	case r < 90:
		return w.resize()
	case r < 95:
		return w.shift()
	default:
		return w.unshift(v)
	}
}

// tolerate swallows range errors, which a small max-alloc makes expected.
func (w *worker) tolerate(res vm.Result) (bool, error) {
	if !res.IsException() {
		return true, nil
	}
	if jserror.IsRange(res.Err) {
		w.report.RangeErrors++
		return false, nil
	}
	return false, res.Err
}

func (w *worker) put(v value.Value) error {
	id, err := w.rt.Intern(fmt.Sprintf("k%d", w.rng.IntN(w.conf.Keys)))
	if err != nil {
		return err
	}
	if ok, err := w.tolerate(w.obj.PutNamed(id, v)); !ok {
		return err
	}
	if _, exists := w.props[id]; exists {
		w.report.Updates++
	} else {
		w.keys = append(w.keys, id)
		w.report.Adds++
	}
	w.props[id] = v
	return nil
}

func (w *worker) erase() error {
	if len(w.keys) == 0 {
		return nil
	}
	j := w.rng.IntN(len(w.keys))
	id := w.keys[j]
	res := w.obj.DeleteNamed(id)
	if res.IsException() {
		return res.Err
	}
	if res.Value != value.True {
		return fmt.Errorf("delete of %s refused", w.rt.Symbols.Name(id))
	}
	w.keys = slices.Delete(w.keys, j, j+1)
	delete(w.props, id)
	w.report.Erases++
	return nil
}

func (w *worker) push(v value.Value) error {
	if ok, err := w.tolerate(w.arr.Push(v)); !ok {
		return err
	}
	w.elems = append(w.elems, v)
	w.report.Pushes++
	return nil
}

// resize mostly shrinks; one in four extends with holes.
func (w *worker) resize() error {
	n := len(w.elems)
	if w.rng.IntN(4) == 0 {
		n += 1 + w.rng.IntN(8)
	} else {
		n -= w.rng.IntN(min(n, 64) + 1)
	}
	if ok, err := w.tolerate(w.arr.SetLength(uint32(n))); !ok {
		return err
	}
	for len(w.elems) < n {
		w.elems = append(w.elems, value.Empty)
	}
	w.elems = w.elems[:n]
	w.report.Resizes++
	return nil
}

func (w *worker) shift() error {
	want := value.Undefined
	if len(w.elems) > 0 && !w.elems[0].IsEmpty() {
		want = w.elems[0]
	}
	res := w.arr.Shift()
	if ok, err := w.tolerate(res); !ok {
		return err
	}
	if res.Value != want {
		return fmt.Errorf("shift returned %v, want %v", res.Value, want)
	}
	if len(w.elems) > 0 {
		w.elems = slices.Delete(w.elems, 0, 1)
	}
	w.report.Shifts++
	return nil
}

func (w *worker) unshift(v value.Value) error {
	if ok, err := w.tolerate(w.arr.Unshift(v)); !ok {
		return err
	}
	w.elems = slices.Insert(w.elems, 0, v)
	w.report.Unshifts++
	return nil
}

// verify compares the object and the array against the model.
func (w *worker) verify() error {
	keys := w.obj.OwnKeys(false)
	if !slices.Equal(keys, w.keys) {
		return fmt.Errorf("own keys diverged: %d keys, model has %d", len(keys), len(w.keys))
	}
	for _, id := range w.keys {
		if got := w.obj.GetNamed(id); !got.IsFound() || got.Value != w.props[id] {
			return fmt.Errorf("property %s is %v, want %v", w.rt.Symbols.Name(id), got, w.props[id])
		}
	}
	if n := w.arr.Length(); int(n) != len(w.elems) {
		return fmt.Errorf("length is %d, model has %d", n, len(w.elems))
	}
	for i, want := range w.elems {
		got := w.arr.GetIndexed(uint32(i))
		if want.IsEmpty() {
			if !got.IsNotFound() {
				return fmt.Errorf("element %d is %v, want a hole", i, got)
			}
		} else if !got.IsFound() || got.Value != want {
			return fmt.Errorf("element %d is %v, want %v", i, got, want)
		}
	}
	return nil
}

func (w *worker) finish() {
	r := &w.report
	r.Collections = w.rt.Collections()
	if m := w.obj.Properties(); m != nil {
		r.Properties = m.Size()
	}
	r.Elements = w.arr.Length()
	if a := w.arr.Elements(); a != nil {
		r.Segments = a.NumSegments()
	}
	r.Barriers = w.rec.Writes + w.rec.Snapshots + w.rec.SymbolWrites + w.rec.SnapshotRanges + w.rec.WriteRanges
	r.Allocations = w.rec.Allocations
	r.AllocatedBytes = w.rec.AllocatedBytes
	r.Oversized = w.rec.Oversized
}

// writeSnapshots saves the worker's property map, elements and symbol
// table into dir.
func (w *worker) writeSnapshots(dir string, codec snapshot.Codec) error {
	write := func(name string, data []byte, err error) error {
		if err != nil {
			return fmt.Errorf("worker %d: %s snapshot: %w", w.report.Worker, name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("worker%d-%s.jshp", w.report.Worker, name))
		log().Debugf("writing %s (%d bytes)", path, len(data))
		return os.WriteFile(path, data, 0o644)
	}
	if m := w.obj.Properties(); m != nil {
		data, err := snapshot.SavePropertyMap(codec, w.rt.ID, m)
		if err := write("props", data, err); err != nil {
			return err
		}
	}
	if a := w.arr.Elements(); a != nil {
		data, err := snapshot.SaveArray(codec, w.rt.ID, a)
		if err := write("elements", data, err); err != nil {
			return err
		}
	}
	data, err := snapshot.SaveSymbols(codec, w.rt.ID, w.rt.Symbols)
	return write("symbols", data, err)
}
