package revisionable

// Policy decides which field keys are revisioned.
type Policy struct {
	Keep     map[string]struct{} // explicit include list; empty means every field
	DontKeep map[string]struct{} // explicit exclude list; always wins
}

// NewPolicy builds a policy from include and exclude lists.
func NewPolicy(keep, dontKeep []string) Policy {
	p := Policy{Keep: map[string]struct{}{}, DontKeep: map[string]struct{}{}}
	p.Include(keep...)
	p.Exclude(dontKeep...)
	return p
}

// Include adds keys to the include list.
func (p *Policy) Include(keys ...string) {
	if p.Keep == nil {
		p.Keep = map[string]struct{}{}
	}
	for _, k := range keys {
		p.Keep[k] = struct{}{}
	}
}

// Exclude adds keys to the exclude list.
func (p *Policy) Exclude(keys ...string) {
	if p.DontKeep == nil {
		p.DontKeep = map[string]struct{}{}
	}
	for _, k := range keys {
		p.DontKeep[k] = struct{}{}
	}
}

// Revisionable reports whether changes to key should be recorded.
func (p Policy) Revisionable(key string) bool {
	if _, ok := p.DontKeep[key]; ok {
		return false
	}
	if len(p.Keep) == 0 {
		return true
	}
	_, ok := p.Keep[key]
	return ok
}
