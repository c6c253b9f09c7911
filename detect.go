package revisionable

// DetectChanges returns the dirty fields whose new value should be revisioned,
// in dirty order. A key whose old or new value is compound is skipped. Keys
// that are skipped are purged from both snapshots since
// they are not needed for the rest of the save.
func DetectChanges(dirty []string, original, updated *Snapshot, p Policy, eq Comparer) *Snapshot {
	if eq == nil {
		eq = LooseEqual
	}
	changes := NewSnapshot()
	for _, key := range dirty {
		val := updated.Value(key)
		if IsCompound(val) || IsCompound(original.Value(key)) || !p.Revisionable(key) {
			original.Delete(key)
			updated.Delete(key)
			continue
		}
		old, ok := original.Get(key)
		if !ok || unwrap(old) == nil || !eq(old, val) {
			changes.Set(key, val)
		}
	}
	return changes
}

// DirtyKeys lists the keys of updated whose value differs from original
// under strict comparison, in updated order.
func DirtyKeys(original, updated *Snapshot) []string {
	var out []string
	for _, key := range updated.Keys() {
		old, ok := original.Get(key)
		if !ok || !StrictEqual(old, updated.Value(key)) {
			out = append(out, key)
		}
	}
	return out
}

// unionKeys lists the keys of a followed by the keys only present in b.
func unionKeys(a, b *Snapshot) []string {
	keys := a.Keys()
	for _, key := range b.Keys() {
		if _, ok := a.Get(key); !ok {
			keys = append(keys, key)
		}
	}
	return keys
}
