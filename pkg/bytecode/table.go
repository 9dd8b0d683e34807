package bytecode

// Table is an open-addressed hash table with linear probing, power-of-two
// capacity and a 75% load factor, keyed by interned *String pointers. The
// same implementation backs globals, class method tables, instance field
// tables, and (via pkg/heap) the string intern table itself.
//
// Deletion uses tombstones: a deleted slot has a nil key and a non-nil
// marker value (BoolValue(true)), which is how probing tells "never used"
// apart from "used, then deleted" without rehashing on every delete. Count
// includes tombstones so the load factor check still triggers a rehash
// (which reclaims them) before the table fills up with dead slots.
type Table struct {
	count   int
	entries []tableEntry
}

type tableEntry struct {
	key   *String
	value Value
}

// tombstoneMarker is the sentinel value written into a deleted slot: a
// nil key with a non-nil value is how probing tells a tombstone from a
// never-used slot.
var tombstoneMarker = BoolValue(true)

const tableMaxLoad = 0.75

// NewTable returns an empty table. Storage is allocated lazily on first
// insert.
func NewTable() *Table {
	return &Table{}
}

// Count returns the entry count used for load-factor decisions; it
// includes tombstones, which are only reclaimed on rehash.
func (t *Table) Count() int {
	return t.count
}

// Get looks up key, returning its value and whether it was present.
func (t *Table) Get(key *String) (Value, bool) {
	if len(t.entries) == 0 {
		return NilValue, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return NilValue, false
	}
	return e.value, true
}

// Set inserts or updates key -> value, returning true if this created a
// brand new key (as opposed to overwriting an existing one).
func (t *Table) Set(key *String, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := t.findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && e.value.IsNil() {
		// only a genuinely empty slot (not a reused tombstone) grows count.
		t.count++
	}

	e.key = key
	e.value = value
	return isNewKey
}

// Delete removes key, leaving a tombstone behind so later probes still find
// entries that collided with it.
func (t *Table) Delete(key *String) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = tombstoneMarker
	return true
}

// FindString looks up a string by raw content and hash without needing a
// *String key already in hand. This is exactly the primitive pkg/heap
// uses to implement interning (probe the intern table before allocating).
func (t *Table) FindString(s string, hash uint32) *String {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	index := hash & uint32(capacity-1)
	for {
		e := &t.entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				return nil // genuinely empty: not interned
			}
			// tombstone: keep probing
		} else if e.key.Hash == hash && e.key.Chars == s {
			return e.key
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

// AddAll copies every live entry of src into t, overwriting on key
// collision. This implements the Inherit opcode's "copy the superclass's
// method table into the subclass's method table" semantics.
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// Each calls fn for every live entry, in table order. Used by the GC to
// trace through globals/fields/methods and by the heap to sweep
// unreachable strings out of the intern table.
func (t *Table) Each(fn func(key *String, value Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// DeleteIf removes every live entry for which should(key) is true. Used by
// the GC's tableRemoveWhite pass over the string intern table.
func (t *Table) DeleteIf(should func(key *String) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && should(e.key) {
			e.key = nil
			e.value = tombstoneMarker
		}
	}
}

func (t *Table) findEntry(entries []tableEntry, key *String) *tableEntry {
	capacity := len(entries)
	index := key.Hash & uint32(capacity-1)
	var tombstone *tableEntry
	for {
		e := &entries[index]
		switch {
		case e.key == nil:
			if e.value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

func (t *Table) grow(capacity int) {
	entries := make([]tableEntry, capacity)
	newCount := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := t.findEntry(entries, e.key)
		dst.key = e.key
		dst.value = e.value
		newCount++
	}
	t.entries = entries
	t.count = newCount
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}
