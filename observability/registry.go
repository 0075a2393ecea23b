package observability

import (
	"fmt"
	"log/slog"
	"sync"
)

// observers maps a name to a resolved Observer, so a flag or config field
// such as cmd/procdemo's "-observer" can name a sink without the caller
// constructing it directly.
var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
	mutex sync.RWMutex
)

// GetObserver resolves a registered Observer by name.
// Pre-registered: "noop" (NoOpObserver) and "slog" (slog.Default()).
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named Observer in the process-wide
// registry, letting a host (a CLI flag, a queue.Config field loaded from
// JSON) pick an Observer built with caller-specific wiring by name instead
// of a type switch.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}
