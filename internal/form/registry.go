package form

import (
	"errors"
	"sync"

	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

var ErrDraftNotFound = errors.New("draft not found")

type entry struct {
	mu    sync.Mutex
	draft *voucher.Draft
}

// Registry keeps open drafts in memory. Drafts are never persisted; a
// restart discards them.
type Registry struct {
	mu     sync.RWMutex
	drafts map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{drafts: make(map[string]*entry)}
}

func (r *Registry) Put(d *voucher.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.ID] = &entry{draft: d}
}

// With runs fn holding the draft's lock. Calls on different drafts proceed
// concurrently.
func (r *Registry) With(id string, fn func(d *voucher.Draft) error) error {
	r.mu.RLock()
	e, ok := r.drafts[id]
	r.mu.RUnlock()
	if !ok {
		return ErrDraftNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.draft)
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return false
	}
	delete(r.drafts, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drafts)
}
