package state

// Merge applies src to dst with deep-merge semantics, in place.
//
// For each key in src: if the source value is itself a mapping, recurse,
// creating (or replacing) the target's nested mapping when it is absent or
// not a mapping itself. Any other source value overwrites the target value
// outright - including nil and empty values. There is no special-casing:
// deep-merge cannot delete a key, only overwrite it.
func Merge(dst, src Tree) {
	for k, v := range src {
		sub, ok := v.(Tree)
		if !ok {
			dst[k] = copyValue(v)
			continue
		}
		existing, ok := dst[k].(Tree)
		if !ok {
			existing = make(Tree, len(sub))
			dst[k] = existing
		}
		Merge(existing, sub)
	}
}

// Replace applies src to dst with shallow-replace semantics, in place.
//
// Each top-level key present in src is substituted wholesale; sibling
// top-level keys are untouched. Replace exists because deep-merge cannot
// express deletion of a nested field: a writer that needs to remove a key
// (dropping a cart line item, say) scopes a Replace to the smallest
// containing top-level key.
func Replace(dst, src Tree) {
	for k, v := range src {
		dst[k] = copyValue(v)
	}
}
