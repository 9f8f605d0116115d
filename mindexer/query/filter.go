package query

// Filter maps fields to their conditions, remembering insertion order
type Filter struct {
	fields []string
	conds  map[string]Condition
}

// Len returns the number of filtered fields
func (f *Filter) Len() int { return len(f.fields) }

// Fields returns the filtered fields in insertion order
func (f *Filter) Fields() []string {
	out := make([]string, len(f.fields))
	copy(out, f.fields)
	return out
}

// Get returns the condition on field
func (f *Filter) Get(field string) (Condition, bool) {
	c, ok := f.conds[field]
	return c, ok
}

func (f *Filter) Has(field string) bool {
	_, ok := f.conds[field]
	return ok
}

// Wire renders the filter as a wire document
func (f *Filter) Wire() Doc {
	d := make(Doc, 0, len(f.fields))
	for _, field := range f.fields {
		d = append(d, Elem{Key: field, Value: f.conds[field].Wire()})
	}
	return d
}

func (f *Filter) set(field string, c Condition) {
	if f.conds == nil {
		f.conds = make(map[string]Condition)
	}
	if _, ok := f.conds[field]; !ok {
		f.fields = append(f.fields, field)
	}
	f.conds[field] = c
}

func (f *Filter) clone() Filter {
	out := Filter{
		fields: make([]string, len(f.fields)),
		conds:  make(map[string]Condition, len(f.conds)),
	}
	copy(out.fields, f.fields)
	for k, c := range f.conds {
		out.conds[k] = c
	}
	return out
}
