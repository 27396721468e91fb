package ledger

// fieldIndex maps field -> value key -> position of the earliest record holding it.
// Only append touches it, and positions never change, so entries are never evicted.
type fieldIndex struct {
	fields map[string]map[string]int
}

func newFieldIndex(fields ...string) *fieldIndex {
	idx := &fieldIndex{fields: make(map[string]map[string]int, len(fields))}
	for _, f := range fields {
		idx.fields[f] = make(map[string]int)
	}
	return idx
}

func (idx *fieldIndex) covers(field string) bool {
	_, ok := idx.fields[field]
	return ok
}

func (idx *fieldIndex) add(pos int, r *Record) {
	for field, values := range idx.fields {
		v, ok := r.payload.Get(field)
		if !ok {
			continue
		}
		if _, seen := values[v.key()]; !seen {
			values[v.key()] = pos
		}
	}
}

func (idx *fieldIndex) lookup(field string, value Value) (int, bool) {
	values, ok := idx.fields[field]
	if !ok {
		return 0, false
	}
	pos, ok := values[value.key()]
	return pos, ok
}
