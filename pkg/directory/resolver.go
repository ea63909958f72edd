package directory

// Resolver is the capability interface the validator consumes. Keeping it an
// interface (instead of reaching into the store) means validation can be
// tested with a static fake and the directory backing can change without
// touching the validator.
type Resolver interface {
	// Resolve returns the subject's tenant and external identifier, or
	// nil when the subject does not exist.
	Resolve(subjectID string) (*ResolvedSubject, error)
}

// StaticResolver is an in-memory Resolver keyed by subject ID. Used in tests
// and for fixed fixture data.
type StaticResolver map[string]ResolvedSubject

// Resolve implements Resolver.
func (r StaticResolver) Resolve(subjectID string) (*ResolvedSubject, error) {
	s, ok := r[subjectID]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}
