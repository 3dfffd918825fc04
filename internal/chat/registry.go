package chat

import "sync"

// Registry holds the chat tabs of one window and which of them is current.
type Registry struct {
	mu      sync.Mutex
	name    string
	views   []*View
	current string
}

// NewRegistry creates an empty registry; new tabs are called name
func NewRegistry(name string) *Registry {
	return &Registry{name: name}
}

// New always creates a fresh tab and makes it current
func (r *Registry) New() *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create()
}

func (r *Registry) create() *View {
	v := NewView(r.name)
	r.views = append(r.views, v)
	r.current = v.id
	return v
}

// Add registers an existing tab, e.g. one restored from disk, and makes it
// current.
func (r *Registry) Add(v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	r.current = v.id
}

// Current returns the current tab. With none marked current the first tab
// is promoted, and with no tabs at all one is created.
func (r *Registry) Current() *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.views {
		if v.id == r.current {
			return v
		}
	}
	if len(r.views) > 0 {
		r.current = r.views[0].id
		return r.views[0]
	}
	return r.create()
}

// Activate marks the tab with id current. It returns false for an unknown id.
func (r *Registry) Activate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.views {
		if v.id == id {
			r.current = id
			return true
		}
	}
	return false
}

// Close removes the tab with id. Closing the current tab leaves no tab
// marked current, so the next Current call promotes the first one.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.views {
		if v.id != id {
			continue
		}
		r.views = append(r.views[:i], r.views[i+1:]...)
		if r.current == id {
			r.current = ""
		}
		return true
	}
	return false
}

// Views returns the tabs in creation order
func (r *Registry) Views() []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*View(nil), r.views...)
}

// Index returns the 1-based position of the tab with id, or 0
func (r *Registry) Index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.views {
		if v.id == id {
			return i + 1
		}
	}
	return 0
}
