package vm

import "github.com/chazu/jsheap/propmap"

// Inline caching for named property reads.
//
// A cache belongs to one property-read site. Each entry remembers where a
// property map keeps the site's property, and is only trusted while the
// map's version is unchanged: erasing a property bumps the version because
// its slot may be handed to a different name.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (map, slot) cached
	CachePolymorphic                   // 2-4 entries
	CacheMegamorphic                   // Too many maps, always look up
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	default:
		return "megamorphic"
	}
}

// MaxPICEntries is the maximum number of entries in a polymorphic cache.
const MaxPICEntries = 4

// PropertyCacheEntry is one cached lookup.
type PropertyCacheEntry struct {
	Map     *propmap.Map
	Version uint64
	Slot    uint32
}

// PropertyCache is the cache for a single read site.
// It progresses through states: Empty -> Monomorphic -> Polymorphic -> Megamorphic
type PropertyCache struct {
	State   CacheState
	Entries [MaxPICEntries]PropertyCacheEntry
	Count   int

	Hits   uint64
	Misses uint64
}

// Lookup returns the cached slot for m, if the entry is still valid.
func (pc *PropertyCache) Lookup(m *propmap.Map) (uint32, bool) {
	if pc.State == CacheMonomorphic || pc.State == CachePolymorphic {
		for i := 0; i < pc.Count; i++ {
			e := &pc.Entries[i]
			if e.Map == m && e.Version == m.Version() {
				pc.Hits++
				return e.Slot, true
			}
		}
	}
	pc.Misses++
	return 0, false
}

// Update records where m keeps the property, upgrading the state as
// more maps are seen.
func (pc *PropertyCache) Update(m *propmap.Map, slot uint32) {
	entry := PropertyCacheEntry{Map: m, Version: m.Version(), Slot: slot}
	switch pc.State {
	case CacheEmpty:
		pc.State = CacheMonomorphic
		pc.Entries[0] = entry
		pc.Count = 1

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < pc.Count; i++ {
			if pc.Entries[i].Map == m {
				// Same map, newer version.
				pc.Entries[i] = entry
				return
			}
		}
		if pc.Count < MaxPICEntries {
			pc.Entries[pc.Count] = entry
			pc.Count++
			pc.State = CachePolymorphic
			return
		}
		pc.State = CacheMegamorphic
		pc.Entries = [MaxPICEntries]PropertyCacheEntry{}
		pc.Count = 0

	case CacheMegamorphic:
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (pc *PropertyCache) HitRate() float64 {
	total := pc.Hits + pc.Misses
	if total == 0 {
		return 0
	}
	return float64(pc.Hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (pc *PropertyCache) Reset() {
	*pc = PropertyCache{}
}

// PropertyCacheTable holds the caches of every read site in a function,
// keyed by site (bytecode offset).
type PropertyCacheTable struct {
	caches map[int]*PropertyCache
}

// NewPropertyCacheTable creates an empty table.
func NewPropertyCacheTable() *PropertyCacheTable {
	return &PropertyCacheTable{caches: make(map[int]*PropertyCache)}
}

// GetOrCreate returns the cache for a site, creating one if needed.
func (t *PropertyCacheTable) GetOrCreate(site int) *PropertyCache {
	if pc := t.caches[site]; pc != nil {
		return pc
	}
	pc := &PropertyCache{}
	t.caches[site] = pc
	return pc
}

// Get returns the cache for a site, or nil.
func (t *PropertyCacheTable) Get(site int) *PropertyCache {
	return t.caches[site]
}

// CacheStats holds aggregate inline cache statistics.
type CacheStats struct {
	Sites       int
	Monomorphic int
	Polymorphic int
	Megamorphic int
	Empty       int
	Hits        uint64
	Misses      uint64
}

// HitRate returns the aggregate hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// Stats aggregates every cache in the table.
func (t *PropertyCacheTable) Stats() CacheStats {
	var s CacheStats
	for _, pc := range t.caches {
		s.Sites++
		switch pc.State {
		case CacheMonomorphic:
			s.Monomorphic++
		case CachePolymorphic:
			s.Polymorphic++
		case CacheMegamorphic:
			s.Megamorphic++
		case CacheEmpty:
			s.Empty++
		}
		s.Hits += pc.Hits
		s.Misses += pc.Misses
	}
	return s
}

// Reset clears all caches in the table.
func (t *PropertyCacheTable) Reset() {
	for _, pc := range t.caches {
		pc.Reset()
	}
}
