package history

import "sync"

// Tracker remembers which riders a driver has already been shown, so a
// dispatch walk never offers the same rider to a driver twice. Entries are
// append-only for the process lifetime.
type Tracker struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{} // driver -> set of riders
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]map[string]struct{})}
}

func (t *Tracker) HasSeen(driverID, riderID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	riders, ok := t.seen[driverID]
	if !ok {
		return false
	}
	_, ok = riders[riderID]
	return ok
}

// MarkSeen is idempotent and creates the driver's set on first use.
func (t *Tracker) MarkSeen(driverID, riderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	riders, ok := t.seen[driverID]
	if !ok {
		riders = make(map[string]struct{})
		t.seen[driverID] = riders
	}
	riders[riderID] = struct{}{}
}
