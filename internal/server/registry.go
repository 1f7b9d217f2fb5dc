package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"foresight/internal/metrics"
	"foresight/internal/trade"
)

type dialogEntry struct {
	dialog   *trade.Dialog
	lastUsed time.Time
}

// Registry holds the open trade dialogs keyed by an opaque id. Entries idle
// for longer than the TTL are closed by Sweep.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*dialogEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*dialogEntry),
		now:     time.Now,
	}
}

// Open registers d and returns its id.
func (r *Registry) Open(d *trade.Dialog) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &dialogEntry{dialog: d, lastUsed: r.now()}
	n := len(r.entries)
	r.mu.Unlock()
	metrics.OpenDialogs.Set(float64(n))
	return id
}

// Get returns the dialog for id and marks it as used.
func (r *Registry) Get(id string) (*trade.Dialog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.dialog, true
}

// Close closes and forgets the dialog for id. It reports whether the id was
// known.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	n := len(r.entries)
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.dialog.Close()
	metrics.OpenDialogs.Set(float64(n))
	return true
}

// Sweep closes dialogs idle for longer than ttl. Dialogs with a submission
// in flight are kept until it settles.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []*trade.Dialog
	for id, e := range r.entries {
		if e.lastUsed.After(cutoff) || e.dialog.State().InFlight() {
			continue
		}
		expired = append(expired, e.dialog)
		delete(r.entries, id)
	}
	n := len(r.entries)
	r.mu.Unlock()

	for _, d := range expired {
		d.Close()
	}
	metrics.OpenDialogs.Set(float64(n))
	return len(expired)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
