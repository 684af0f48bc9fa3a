package runtime

import (
	"chat-relay/contract"
	"chat-relay/protocol"
	"sync"

	"github.com/samber/lo"
)

type entry struct {
	name string
	out  contract.Outbound
}

// Registry is the authoritative table of connected display names and their
// delivery handles. Every session holds a reference to the same instance; a
// single mutex serializes all operations so no session ever observes half of
// another session's register-then-announce sequence.
//
// Entries keep their insertion order: broadcasts fan out in registry order.
type Registry struct {
	mu      sync.Mutex
	entries []entry

	// everHeld flips once the table has held at least one entry. The
	// dispatcher uses it for its shutdown-on-idle-after-first-use policy.
	everHeld bool
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{}
}

// Register inserts a new name with its delivery handle. It fails, leaving
// the table untouched, when the name is empty or already taken. Uniqueness
// is enforced here and nowhere else.
func (r *Registry) Register(name string, out contract.Outbound) bool {
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(name) >= 0 {
		return false
	}
	r.entries = append(r.entries, entry{name: name, out: out})
	r.everHeld = true
	return true
}

// Rename changes an entry's name in place, keeping its delivery handle and
// position. Renaming a name to itself succeeds as a no-op.
func (r *Registry) Rename(oldName, newName string) bool {
	if newName == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(oldName)
	if i < 0 {
		return false
	}
	if newName != oldName && r.indexOf(newName) >= 0 {
		return false
	}
	r.entries[i].name = newName
	return true
}

// Unregister removes the entry if present. Idempotent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}

// ListNames returns a point-in-time snapshot of the registered names, in
// registry order, minus the excluded one. Callers must tolerate staleness.
func (r *Registry) ListNames(excluding string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.FilterMap(r.entries, func(en entry, _ int) (string, bool) {
		return en.name, en.name != excluding
	})
}

// Broadcast delivers the envelope to every registered handle, in registry
// order. Delivery is best-effort: one failing recipient does not stop the
// fan-out. The table stays locked for the whole fan-out so a concurrent
// register or rename can never split a broadcast in two.
func (r *Registry) Broadcast(e protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, en := range r.entries {
		_ = en.out.Deliver(e)
	}
}

// SendTo delivers the envelope to exactly one recipient and reports whether
// that recipient existed.
func (r *Registry) SendTo(name string, e protocol.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return false
	}
	_ = r.entries[i].out.Deliver(e)
	return true
}

// Size returns the number of currently registered names.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drained reports whether the table has been used and then emptied again.
func (r *Registry) Drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.everHeld && len(r.entries) == 0
}

// indexOf must be called with the lock held.
func (r *Registry) indexOf(name string) int {
	for i, en := range r.entries {
		if en.name == name {
			return i
		}
	}
	return -1
}
