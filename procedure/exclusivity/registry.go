package exclusivity

import "sync"

// waiter is one pending RequestLock call. It becomes runnable once it is at
// the head of every category queue it was enqueued on.
type waiter struct {
	completion func()
	remaining  int // number of categories where this waiter is not yet head
	fired      bool
}

// Registry is the process-wide exclusivity registry described in spec.md
// §4.3: a map from category name to a FIFO of waiters. At most one Task
// holding a given category executes at a time; RequestLock/Unlock pairs
// form an ordered barrier across the named mutexes a Task declares.
//
// Registry has its own mutex, independent of any Task's Event Queue or
// per-Task mutex (spec.md §5 "Shared resource policy").
type Registry struct {
	mu    sync.Mutex
	queue map[string][]*waiter
}

// NewRegistry returns an empty Registry. Most callers should use
// DefaultRegistry unless they need isolation for testing (spec.md §9:
// "Global state ... becomes an explicit singleton with an injection seam for
// testing").
func NewRegistry() *Registry {
	return &Registry{queue: make(map[string][]*waiter)}
}

// DefaultRegistry is the process-wide singleton used by Tasks that do not
// have a Registry injected at construction.
var DefaultRegistry = NewRegistry()

// RequestLock enqueues completion against every named category and invokes
// it exactly once, when it has reached the head of all of them. If every
// named category is currently empty, completion runs synchronously, before
// RequestLock returns.
func (r *Registry) RequestLock(categories []string, completion func()) {
	if len(categories) == 0 {
		completion()
		return
	}

	r.mu.Lock()
	w := &waiter{completion: completion, remaining: 0}
	for _, category := range categories {
		chain := r.queue[category]
		if len(chain) != 0 {
			w.remaining++
		}
		r.queue[category] = append(chain, w)
	}
	fire := w.remaining == 0
	if fire {
		w.fired = true
	}
	r.mu.Unlock()

	if fire {
		completion()
	}
}

// Unlock releases categories previously acquired via a RequestLock whose
// completion has already run. For each category, the caller is removed
// from the head and the next waiter, if any, is promoted; a promoted waiter
// whose remaining count reaches zero fires immediately.
func (r *Registry) Unlock(categories []string) {
	if len(categories) == 0 {
		return
	}

	var toFire []*waiter

	r.mu.Lock()
	for _, category := range categories {
		chain := r.queue[category]
		if len(chain) == 0 {
			continue
		}
		chain = chain[1:]
		if len(chain) == 0 {
			delete(r.queue, category)
		} else {
			r.queue[category] = chain
			next := chain[0]
			next.remaining--
			if next.remaining == 0 && !next.fired {
				next.fired = true
				toFire = append(toFire, next)
			}
		}
	}
	r.mu.Unlock()

	for _, w := range toFire {
		w.completion()
	}
}
