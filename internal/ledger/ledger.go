package ledger

import "sync"

// Liveness answers whether a driver's connection is currently open. The
// registry supplies it; tests plug in stubs.
type Liveness func(driverID string) bool

type record struct {
	online        bool
	available     bool
	offerInFlight bool
	onTrip        bool
}

// Ledger tracks per-driver availability and the mutually exclusive
// offer-in-flight marker. It is the synchronization point that keeps two
// concurrent dispatch walks from both winning the same driver, so every
// transition happens under one mutex.
type Ledger struct {
	mu      sync.Mutex
	drivers map[string]*record
	isOpen  Liveness
}

func New(isOpen Liveness) *Ledger {
	return &Ledger{drivers: make(map[string]*record), isOpen: isOpen}
}

// SetOnline marks a driver dispatch-eligible. Called when the driver
// registers; resets any stale flags from a previous session.
func (l *Ledger) SetOnline(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		rec = &record{}
		l.drivers[driverID] = rec
	}
	rec.online = true
	rec.offerInFlight = false
	rec.onTrip = false
	rec.available = true
}

// TryReserve atomically checks available && no offer in flight && connection
// open, and claims the driver in the same step. Returns false without side
// effects if the driver cannot be reserved.
func (l *Ledger) TryReserve(driverID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil || !rec.online || !rec.available || rec.offerInFlight {
		return false
	}
	if l.isOpen != nil && !l.isOpen(driverID) {
		return false
	}
	rec.available = false
	rec.offerInFlight = true
	return true
}

// Release returns a reserved driver to the pool after a decline or timeout.
// A driver that went offline or on a trip in the meantime stays unavailable.
func (l *Ledger) Release(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		return
	}
	rec.offerInFlight = false
	rec.available = rec.online && !rec.onTrip
}

// SetOffline detaches a driver from future candidate lists and clears any
// in-flight marker. Called on disconnect or explicit go-offline.
func (l *Ledger) SetOffline(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		return
	}
	rec.online = false
	rec.available = false
	rec.offerInFlight = false
}

// BeginTrip consumes an accepted reservation: the driver stays unavailable
// but no longer holds an offer.
func (l *Ledger) BeginTrip(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		return
	}
	rec.offerInFlight = false
	rec.available = false
	rec.onTrip = true
}

// EndTrip returns a driver to the pool once the ride completes.
func (l *Ledger) EndTrip(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		return
	}
	rec.onTrip = false
	rec.available = rec.online
}

// Status exposes the current flags, mainly for tests and admin surfaces.
func (l *Ledger) Status(driverID string) (available, offerInFlight bool, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.drivers[driverID]
	if rec == nil {
		return false, false, false
	}
	return rec.available, rec.offerInFlight, true
}

// OnlineCount reports drivers currently marked online.
func (l *Ledger) OnlineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, rec := range l.drivers {
		if rec.online {
			n++
		}
	}
	return n
}
