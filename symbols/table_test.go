package symbols

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/value"
)

func TestInternIsIdempotent(t *testing.T) {
	tab := New(0)
	a := tab.MustIntern("length")
	b := tab.MustIntern("length")
	assert.Equal(t, a, b)
	assert.True(t, a.IsUniqued())
	assert.True(t, a.IsValid())
	assert.Equal(t, "length", tab.Name(a))
	assert.Equal(t, 1, tab.Len())
}

func TestDistinctContentDistinctIDs(t *testing.T) {
	tab := New(0)
	seen := make(map[SymbolID]string)
	for i := 0; i < 1000; i++ {
		s := fmt.Sprintf("name%d", i)
		id := tab.MustIntern(s)
		prev, dup := seen[id]
		require.False(t, dup, "%q and %q share %v", s, prev, id)
		seen[id] = s
	}
	for id, s := range seen {
		got, ok := tab.Lookup(s)
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
}

func TestContentComparedNotJustHash(t *testing.T) {
	entries := []entry{{content: "x", hash: 7}}
	h := newHashTable(8)
	pos, found := h.find(entries, "x", 7, false)
	require.False(t, found)
	h.insertAt(pos, 0)

	_, found = h.find(entries, "x", 7, false)
	assert.True(t, found)
	_, found = h.find(entries, "y", 7, false)
	assert.False(t, found, "equal hashes with different content must not match")

	pos, found = h.find(entries, "x", 7, true)
	assert.False(t, found, "mustBeNew skips comparison")
	assert.NotEqual(t, 7, pos)
}

func TestLookupMissing(t *testing.T) {
	tab := New(0)
	_, ok := tab.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, tab.Len())
}

func TestOccupancyStaysBelowThreshold(t *testing.T) {
	tab := New(8)
	for i := 0; i < 500; i++ {
		tab.MustIntern(fmt.Sprintf("k%d", i))
		require.LessOrEqual(t, tab.Occupancy(), 0.75, "after %d inserts", i+1)
	}
	assert.GreaterOrEqual(t, tab.Capacity(), 500*4/3)
}

func TestTombstonesCountTowardGrowth(t *testing.T) {
	tab := New(8)
	for i := 0; i < 6; i++ {
		tab.MustIntern(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 8, tab.Capacity())
	for i := 0; i < 6; i++ {
		require.True(t, tab.Remove(fmt.Sprintf("k%d", i)))
	}
	assert.Equal(t, 6, tab.index.tombstones)
	assert.Equal(t, 8, tab.Capacity(), "remove never shrinks or rehashes")
	assert.Equal(t, 0.75, tab.Occupancy())

	tab.MustIntern("x")
	assert.Equal(t, 16, tab.Capacity())
	assert.Equal(t, 0, tab.index.tombstones, "rehash drops tombstones")
	assert.Equal(t, 1, tab.index.live)
}

func TestRemoveThenReinternYieldsFreshID(t *testing.T) {
	tab := New(0)
	id := tab.MustIntern("foo")
	require.True(t, tab.Remove("foo"))
	assert.False(t, tab.IsLive(id))
	assert.Equal(t, "", tab.Name(id))
	_, ok := tab.Lookup("foo")
	assert.False(t, ok)

	again := tab.MustIntern("foo")
	assert.NotEqual(t, id, again)
	assert.Equal(t, 1, tab.PendingLen())

	assert.False(t, tab.Remove("foo-missing"))
}

func TestTrimRecyclesRetiredIDs(t *testing.T) {
	tab := New(0)
	a := tab.MustIntern("a")
	tab.MustIntern("b")
	tab.Remove("a")
	tab.Trim()
	assert.Equal(t, 0, tab.PendingLen())

	c := tab.MustIntern("c")
	assert.Equal(t, a.Index(), c.Index(), "freed index is reused after trim")
	assert.Equal(t, "c", tab.Name(c))
	got, ok := tab.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, c, got)
	_, ok = tab.Lookup("a")
	assert.False(t, ok)
}

func TestNotUniqued(t *testing.T) {
	tab := New(0)
	u := tab.MustIntern("secret")
	p, err := tab.CreateNotUniqued("secret")
	require.NoError(t, err)
	q, err := tab.CreateNotUniqued("secret")
	require.NoError(t, err)

	assert.False(t, p.IsUniqued())
	assert.NotEqual(t, p, q)
	assert.NotEqual(t, u, p)
	assert.Equal(t, "secret", tab.Name(p))

	got, ok := tab.Lookup("secret")
	require.True(t, ok)
	assert.Equal(t, u, got, "not-uniqued ids never answer content lookups")

	tab.Free(p)
	assert.False(t, tab.IsLive(p))
	assert.True(t, tab.IsLive(u))
	assert.Equal(t, 2, tab.Len())
}

func TestFreeUniqued(t *testing.T) {
	tab := New(0)
	id := tab.MustIntern("x")
	tab.Free(id)
	_, ok := tab.Lookup("x")
	assert.False(t, ok)
}

func TestSentinels(t *testing.T) {
	assert.False(t, Empty.IsValid())
	assert.False(t, Deleted.IsValid())
	assert.True(t, SymbolID(MaxIndex).IsValid())
	assert.True(t, makeID(MaxIndex, false).IsValid())
	assert.Equal(t, "SymbolID(empty)", Empty.String())
	assert.Equal(t, "SymbolID(#3, not uniqued)", makeID(3, false).String())
}

func TestSymbolValueRoundTrip(t *testing.T) {
	tab := New(0)
	id := tab.MustIntern("x")
	v := id.Value()
	require.True(t, v.IsSymbol())
	assert.Equal(t, id, FromValue(v))
}

func TestStringValueIsCachedAndRooted(t *testing.T) {
	tab := New(0)
	id := tab.MustIntern("hello")
	calls := 0
	alloc := func(s string) value.Value {
		calls++
		return value.EncodeString(value.MakeRef(0, uint32(len(s))))
	}
	v1 := tab.StringValue(id, alloc)
	v2 := tab.StringValue(id, alloc)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)

	var roots []value.Value
	tab.ForEachRoot(gc.RootAcceptorFunc(func(loc *value.Value) {
		roots = append(roots, *loc)
		*loc = loc.UpdateRef(value.MakeRef(1, 1))
	}))
	assert.Equal(t, []value.Value{v1}, roots)
	assert.Equal(t, value.MakeRef(1, 1), tab.StringValue(id, alloc).Ref())
}

func TestForEach(t *testing.T) {
	tab := New(0)
	tab.MustIntern("a")
	tab.MustIntern("b")
	tab.MustIntern("c")
	tab.Remove("b")
	var names []string
	tab.ForEach(func(_ SymbolID, s string) { names = append(names, s) })
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestExportImport(t *testing.T) {
	tab := New(8)
	for i := 0; i < 20; i++ {
		tab.MustIntern(fmt.Sprintf("p%d", i))
	}
	priv, err := tab.CreateNotUniqued("#priv")
	require.NoError(t, err)
	tab.Remove("p3")
	tab.Remove("p4")
	tab.Trim()
	tab.Remove("p5")

	got, err := Import(tab.Export())
	require.NoError(t, err)
	assert.Equal(t, tab.Len(), got.Len())
	assert.Equal(t, 1, got.PendingLen())
	assert.Equal(t, "#priv", got.Name(priv))

	for i := 0; i < 20; i++ {
		s := fmt.Sprintf("p%d", i)
		want, wantOK := tab.Lookup(s)
		have, haveOK := got.Lookup(s)
		assert.Equal(t, wantOK, haveOK, s)
		assert.Equal(t, want, have, s)
	}

	// Free list survives: the next intern reuses a trimmed index.
	n := got.MustIntern("new")
	assert.Contains(t, []uint32{3, 4}, n.Index())
}

func TestImportRejectsDuplicates(t *testing.T) {
	raw := Raw{Entries: []RawEntry{{Content: "a", Uniqued: true}, {Content: "a", Uniqued: true}}, IndexCapacity: 8}
	_, err := Import(raw)
	assert.Error(t, err)

	raw = Raw{Entries: []RawEntry{{Content: "a", Uniqued: true}}, IndexCapacity: 6}
	_, err = Import(raw)
	assert.Error(t, err)

	raw = Raw{Entries: []RawEntry{{Content: "a", State: 9}}, IndexCapacity: 8}
	_, err = Import(raw)
	assert.Error(t, err)
}
