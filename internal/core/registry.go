package core

// entry is a registered target: exactly one of file/phony is non-nil.
type entry struct {
	file  *FileTarget
	phony *PhonyTarget
}

// Registry accumulates rule definitions keyed by output name. It enforces
// uniqueness (unique outputs, unique phony names, no collisions between the
// two) and is immutable once construction completes — there is no API to
// remove or mutate an entry after registration.
//
// Ordered iteration over dependencies is preserved by returning the slices
// exactly as supplied by the caller at registration time.
type Registry struct {
	byName map[string]*entry
	// order records registration order for deterministic listing (-t).
	order []string
	// defaultUseHash is the DSL-wide freshness default file targets inherit
	// unless overridden per-target.
	defaultUseHash bool
}

// NewRegistry creates an empty registry with the given engine-wide default
// freshness policy.
func NewRegistry(defaultUseHash bool) *Registry {
	return &Registry{byName: make(map[string]*entry), defaultUseHash: defaultUseHash}
}

// RegisterFile registers a file target. It fails with a *DuplicateTargetError
// if any output in t.Outputs collides with an already-registered file output
// or phony name.
func (r *Registry) RegisterFile(t *FileTarget) error {
	if t == nil {
		return &BadArgumentError{Msg: "nil file target"}
	}
	if len(t.Outputs) == 0 {
		return &BadArgumentError{Msg: "file target must declare at least one output"}
	}
	if t.Action == nil {
		return &BadArgumentError{Msg: "file target requires an action"}
	}
	seen := make(map[string]struct{}, len(t.Outputs))
	for _, o := range t.Outputs {
		if o == "" {
			return &BadArgumentError{Msg: "output name must not be empty"}
		}
		if _, dup := seen[o]; dup {
			return &BadArgumentError{Msg: "output listed twice in the same target: " + o}
		}
		seen[o] = struct{}{}
		if _, exists := r.byName[o]; exists {
			return &DuplicateTargetError{Name: o}
		}
	}
	t.UseHashExplicit = t.UseHash != nil
	if t.UseHash == nil {
		v := r.defaultUseHash
		t.UseHash = &v
	}
	e := &entry{file: t}
	for _, o := range t.Outputs {
		r.byName[o] = e
	}
	r.order = append(r.order, t.Primary())
	return nil
}

// RegisterPhony registers a named alias with no file output. It fails with
// *DuplicateTargetError if name collides with any phony name or file
// output already registered.
func (r *Registry) RegisterPhony(p *PhonyTarget) error {
	if p == nil {
		return &BadArgumentError{Msg: "nil phony target"}
	}
	if p.Name == "" {
		return &BadArgumentError{Msg: "phony name must not be empty"}
	}
	if _, exists := r.byName[p.Name]; exists {
		return &DuplicateTargetError{Name: p.Name}
	}
	r.byName[p.Name] = &entry{phony: p}
	r.order = append(r.order, p.Name)
	return nil
}

// LookupResult is the outcome of Lookup: exactly one of File/Phony is set
// when Found is true.
type LookupResult struct {
	Found bool
	File  *FileTarget
	Phony *PhonyTarget
}

// Lookup resolves name against the registry.
func (r *Registry) Lookup(name string) LookupResult {
	e, ok := r.byName[name]
	if !ok {
		return LookupResult{}
	}
	return LookupResult{Found: true, File: e.file, Phony: e.phony}
}

// TargetListing is one row of the -t/--targets output.
type TargetListing struct {
	Name string
	Desc string
}

// List returns every registered target in registration order.
func (r *Registry) List() []TargetListing {
	out := make([]TargetListing, 0, len(r.order))
	emitted := make(map[string]struct{}, len(r.order))
	for _, name := range r.order {
		e := r.byName[name]
		var primary, desc string
		if e.file != nil {
			primary = e.file.Primary()
			desc = e.file.Desc
		} else {
			primary = e.phony.Name
			desc = e.phony.Desc
		}
		if _, done := emitted[primary]; done {
			continue
		}
		emitted[primary] = struct{}{}
		if desc == "" {
			desc = "(no description)"
		}
		out = append(out, TargetListing{Name: primary, Desc: desc})
	}
	return out
}
