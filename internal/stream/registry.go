package stream

import "slices"

// Registry tracks the devices seen so far in insertion order
type Registry struct {
	seen  map[int]struct{}
	order []int
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{seen: make(map[int]struct{})}
}

// IsKnown reports whether the device has been registered
func (r *Registry) IsKnown(deviceID int) bool {
	_, ok := r.seen[deviceID]
	return ok
}

// Register adds the device and reports whether this was its first sighting.
// Registering a known device is a no-op.
func (r *Registry) Register(deviceID int) bool {
	if r.IsKnown(deviceID) {
		return false
	}
	r.seen[deviceID] = struct{}{}
	r.order = append(r.order, deviceID)
	return true
}

// Sorted returns the registered devices in ascending numeric order
func (r *Registry) Sorted() []int {
	ids := slices.Clone(r.order)
	slices.Sort(ids)
	return ids
}

// InOrder returns the registered devices in the order they were first seen
func (r *Registry) InOrder() []int {
	return slices.Clone(r.order)
}

// Len returns the number of registered devices
func (r *Registry) Len() int {
	return len(r.order)
}

// Reset forgets every device
func (r *Registry) Reset() {
	clear(r.seen)
	r.order = r.order[:0]
}
