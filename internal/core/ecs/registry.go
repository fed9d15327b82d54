package ecs

// Registry knows every component store of a world so that removing an entity
// leaves no component behind.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds component stores in the given order.
func (r *Registry) Register(stores ...Removable) {
	r.stores = append(r.stores, stores...)
}

// RemoveAll clears id from every registered store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
