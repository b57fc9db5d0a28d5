package pathindex

// Snapshot is the serializable representation of an Index: the version
// tag, the pool, and the two posting lists. The seen-path set and the
// statistics counters are deliberately excluded — both are runtime-only
// derivations per spec §3 and are rebuilt or reset, never restored.
type Snapshot struct {
	Version        uint32              `cbor:"version"`
	Pool           []string            `cbor:"pool"`
	FilenameIndex  map[string][]uint32 `cbor:"filename_index"`
	ExtensionIndex map[string][]uint32 `cbor:"extension_index"`
}

// Snapshot captures the current pool and posting lists for serialization.
// The returned value is an independent copy; mutating the index afterward
// does not affect it.
func (idx *Index) Snapshot() Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pool := make([]string, len(idx.pool))
	copy(pool, idx.pool)

	filenameIndex := make(map[string][]uint32, len(idx.filenameIndex))
	for k, v := range idx.filenameIndex {
		cp := make([]uint32, len(v))
		copy(cp, v)
		filenameIndex[k] = cp
	}

	extensionIndex := make(map[string][]uint32, len(idx.extensionIndex))
	for k, v := range idx.extensionIndex {
		cp := make([]uint32, len(v))
		copy(cp, v)
		extensionIndex[k] = cp
	}

	return Snapshot{
		Version:        Version,
		Pool:           pool,
		FilenameIndex:  filenameIndex,
		ExtensionIndex: extensionIndex,
	}
}

// FromSnapshot builds an Index from a previously captured Snapshot. The
// seen-path set is left empty; callers must call RebuildCache before
// relying on duplicate detection or on Search, which only returns paths
// present in the seen-path set (persistence.Load does this for you).
func FromSnapshot(s Snapshot) *Index {
	idx := &Index{
		pool:           s.Pool,
		filenameIndex:  s.FilenameIndex,
		extensionIndex: s.ExtensionIndex,
		seenPaths:      make(map[string]struct{}),
	}
	if idx.filenameIndex == nil {
		idx.filenameIndex = make(map[string][]uint32)
	}
	if idx.extensionIndex == nil {
		idx.extensionIndex = make(map[string][]uint32)
	}
	return idx
}
