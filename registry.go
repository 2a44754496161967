package ember

// Registry maps entity kinds to factories. Byte-level tiers need it to
// decode stored payloads back into concrete entity types.
type Registry struct {
	factories map[string]func() Entity
}

// NewRegistry returns a registry pre-loaded with the library's internal
// kinds.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]func() Entity)}
	r.Register(onceKind, func() Entity { return &onceMarker{} })
	return r
}

// Register installs the factory for a kind, replacing any previous one.
func (r *Registry) Register(kind string, factory func() Entity) {
	r.factories[kind] = factory
}

// New constructs an empty entity of the given kind. Returns false for
// unregistered kinds.
func (r *Registry) New(kind string) (Entity, bool) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, false
	}
	return factory(), true
}
