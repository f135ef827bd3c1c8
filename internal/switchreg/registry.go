// Package switchreg tracks connected switches. It is the source of truth for
// which switches may receive commands.
package switchreg

import (
	"Go2NetSDN/internal/model"
	"slices"
	"sync"
	"time"
)

// Registry holds connected switches keyed by datapath id. The event loop is
// its only writer; the stats monitor reads snapshots concurrently.
type Registry struct {
	mu       sync.RWMutex
	switches map[model.DatapathID]*model.Switch
	now      func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		switches: make(map[model.DatapathID]*model.Switch),
		now:      time.Now,
	}
}

// OnConnect registers a switch in the connecting state. It returns false if
// the switch was already present, in which case only its ports are refreshed.
func (r *Registry) OnConnect(id model.DatapathID, ports []model.PortNo) (model.Switch, bool) {
	sorted := slices.Clone(ports)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	r.mu.Lock()
	defer r.mu.Unlock()

	if sw, ok := r.switches[id]; ok {
		sw.Ports = sorted
		return *sw, false
	}
	sw := &model.Switch{
		ID:          id,
		Ports:       sorted,
		State:       model.StateConnecting,
		ConnectedAt: r.now(),
	}
	r.switches[id] = sw
	return *sw, true
}

// Activate makes a registered switch visible to ForEachActive.
func (r *Registry) Activate(id model.DatapathID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sw, ok := r.switches[id]
	if !ok {
		return false
	}
	sw.State = model.StateActive
	return true
}

// OnDisconnect removes a switch. The returned copy is in the disconnected state.
func (r *Registry) OnDisconnect(id model.DatapathID) (model.Switch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sw, ok := r.switches[id]
	if !ok {
		return model.Switch{}, false
	}
	delete(r.switches, id)
	out := *sw
	out.State = model.StateDisconnected
	return out, true
}

// Get returns a copy of the switch with the given id.
func (r *Registry) Get(id model.DatapathID) (model.Switch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sw, ok := r.switches[id]
	if !ok {
		return model.Switch{}, false
	}
	return *sw, true
}

// List returns copies of all registered switches ordered by id.
func (r *Registry) List() []model.Switch {
	r.mu.RLock()
	out := make([]model.Switch, 0, len(r.switches))
	for _, sw := range r.switches {
		out = append(out, *sw)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Switch) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// ForEachActive calls fn for every active switch, in ascending id order. The
// set is snapshotted first, so fn may run while the registry changes.
func (r *Registry) ForEachActive(fn func(model.Switch)) {
	for _, sw := range r.List() {
		if sw.State == model.StateActive {
			fn(sw)
		}
	}
}

// Len returns the number of registered switches, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.switches)
}
