package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/history"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// Sender is what the engine needs from a driver's connection.
type Sender interface {
	Send(v any) error
}

// Directory resolves a driver id to its live connection, if any.
type Directory interface {
	DriverConn(driverID string) (Sender, bool)
}

type OutcomeKind string

const (
	OutcomeAccepted      OutcomeKind = "accepted"
	OutcomeNoDriverFound OutcomeKind = "no_driver_found"
	OutcomeCancelled     OutcomeKind = "cancelled"
)

// Outcome is the terminal result of one dispatch session.
type Outcome struct {
	Kind     OutcomeKind
	DriverID string // set only for OutcomeAccepted
}

type resolution int

const (
	resolvedCancelled resolution = iota
	resolvedAccepted
	resolvedDeclined
	resolvedDisconnected
)

type offerKey struct {
	rideID   string
	driverID string
}

// Engine walks one ride's candidate list sequentially, offering to one
// driver at a time. Many rides dispatch concurrently; the ledger arbitrates
// contention on shared drivers.
type Engine struct {
	Dir     Directory
	Ledger  *ledger.Ledger
	History *history.Tracker
	Log     *slog.Logger

	// OfferTimeout bounds each driver's response window. ExhaustionGrace is
	// the trailing wait before reporting no-driver-found once the list runs
	// out; zero reports immediately.
	OfferTimeout    time.Duration
	ExhaustionGrace time.Duration

	mu       sync.Mutex
	pending  map[offerKey]chan resolution
	byDriver map[string]offerKey
}

func NewEngine(dir Directory, led *ledger.Ledger, hist *history.Tracker, log *slog.Logger, offerTimeout, grace time.Duration) *Engine {
	return &Engine{
		Dir:             dir,
		Ledger:          led,
		History:         hist,
		Log:             log,
		OfferTimeout:    offerTimeout,
		ExhaustionGrace: grace,
		pending:         make(map[offerKey]chan resolution),
		byDriver:        make(map[string]offerKey),
	}
}

// Dispatch walks candidates in the order supplied and resolves to exactly
// one outcome. It never returns an error for driver-side trouble; anything
// that goes wrong while messaging a driver counts as a decline and the walk
// continues.
func (e *Engine) Dispatch(ctx context.Context, rideID string, req models.RideRequest, candidates []string) Outcome {
	start := time.Now()
	out := e.walk(ctx, rideID, req, candidates)
	observability.DispatchOutcomes.WithLabelValues(string(out.Kind)).Inc()
	observability.DispatchDuration.Observe(time.Since(start).Seconds())
	e.Log.Info("dispatch_resolved",
		"ride_id", rideID,
		"rider_id", req.RiderID,
		"outcome", string(out.Kind),
		"driver_id", out.DriverID,
		"candidates", len(candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (e *Engine) walk(ctx context.Context, rideID string, req models.RideRequest, candidates []string) Outcome {
	for _, driverID := range candidates {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled}
		}
		if e.History.HasSeen(driverID, req.RiderID) {
			continue
		}
		sess, ok := e.Dir.DriverConn(driverID)
		if !ok {
			continue
		}
		// The one atomic step two racing dispatch walks can disagree on.
		if !e.Ledger.TryReserve(driverID) {
			continue
		}
		e.History.MarkSeen(driverID, req.RiderID)

		switch e.offer(ctx, rideID, req, driverID, sess) {
		case resolvedAccepted:
			// Reservation stays consumed; the caller books the ride and
			// transitions the driver onto the trip.
			observability.OfferResolutions.WithLabelValues(string(models.OfferAccepted)).Inc()
			return Outcome{Kind: OutcomeAccepted, DriverID: driverID}
		case resolvedDisconnected:
			// Registry hooks already took the driver offline; nothing to
			// release.
			observability.OfferResolutions.WithLabelValues(string(models.OfferDeclined)).Inc()
		case resolvedDeclined:
			e.Ledger.Release(driverID)
			observability.OfferResolutions.WithLabelValues(string(models.OfferDeclined)).Inc()
		case resolvedCancelled:
			e.Ledger.Release(driverID)
			return Outcome{Kind: OutcomeCancelled}
		}
	}

	if e.ExhaustionGrace > 0 {
		select {
		case <-time.After(e.ExhaustionGrace):
		case <-ctx.Done():
			return Outcome{Kind: OutcomeCancelled}
		}
	}
	return Outcome{Kind: OutcomeNoDriverFound}
}

// offer sends one new_ride push and waits for exactly one of: the driver's
// response, the offer timeout, or cancellation.
func (e *Engine) offer(ctx context.Context, rideID string, req models.RideRequest, driverID string, sess Sender) resolution {
	key := offerKey{rideID: rideID, driverID: driverID}
	res := e.addPending(key)
	defer e.removePending(key)

	msg, err := rideMessage(models.TypeNewRide, rideID, req)
	if err != nil {
		e.Log.Error("offer_encode_failed", "ride_id", rideID, "error", err)
		return resolvedDeclined
	}
	if err := sess.Send(msg); err != nil {
		e.Log.Warn("offer_send_failed", "ride_id", rideID, "driver_id", driverID, "error", err)
		return resolvedDeclined
	}
	observability.OffersSent.Inc()
	e.Log.Info("offer_sent", "ride_id", rideID, "driver_id", driverID, "deadline", time.Now().Add(e.OfferTimeout))

	timer := time.NewTimer(e.OfferTimeout)
	defer timer.Stop()

	select {
	case r := <-res:
		return r
	case <-timer.C:
		e.expire(rideID, req, driverID)
		return resolvedDeclined
	case <-ctx.Done():
		return resolvedCancelled
	}
}

// expire releases the driver and pushes an EXPIRED notice so the driver UI
// can clear the stale offer.
func (e *Engine) expire(rideID string, req models.RideRequest, driverID string) {
	e.Ledger.Release(driverID)
	observability.OfferResolutions.WithLabelValues(string(models.OfferExpired)).Inc()
	e.Log.Info("offer_expired", "ride_id", rideID, "driver_id", driverID)

	sess, ok := e.Dir.DriverConn(driverID)
	if !ok {
		return
	}
	if msg, err := rideMessage(models.TypeExpired, rideID, req); err == nil {
		_ = sess.Send(msg)
	}
}

// Resolve routes an inbound accepted/declined message to the pending offer
// keyed by (ride, driver). A rideID of "" matches whatever single offer the
// driver holds. Late, duplicate, or unmatched responses are dropped; the
// return value reports whether anything was waiting.
func (e *Engine) Resolve(driverID, rideID string, accepted bool) bool {
	e.mu.Lock()
	key, ok := e.byDriver[driverID]
	if !ok || (rideID != "" && key.rideID != rideID) {
		e.mu.Unlock()
		return false
	}
	ch := e.pending[key]
	e.mu.Unlock()

	r := resolvedDeclined
	if accepted {
		r = resolvedAccepted
	}
	select {
	case ch <- r:
		return true
	default:
		return false
	}
}

// HandleDisconnect fails the driver's pending offer, if any, so the waiting
// walk moves on immediately instead of running out the timer.
func (e *Engine) HandleDisconnect(driverID string) {
	e.mu.Lock()
	key, ok := e.byDriver[driverID]
	if !ok {
		e.mu.Unlock()
		return
	}
	ch := e.pending[key]
	e.mu.Unlock()

	select {
	case ch <- resolvedDisconnected:
	default:
	}
}

func (e *Engine) addPending(key offerKey) chan resolution {
	ch := make(chan resolution, 1)
	e.mu.Lock()
	e.pending[key] = ch
	e.byDriver[key.driverID] = key
	e.mu.Unlock()
	return ch
}

func (e *Engine) removePending(key offerKey) {
	e.mu.Lock()
	delete(e.pending, key)
	if e.byDriver[key.driverID] == key {
		delete(e.byDriver, key.driverID)
	}
	e.mu.Unlock()
}

func rideMessage(msgType, rideID string, req models.RideRequest) (models.ServerMessage, error) {
	payload, err := json.Marshal(models.OfferPayload{
		RideID:      rideID,
		RiderID:     req.RiderID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Vehicle:     req.Vehicle,
	})
	if err != nil {
		return models.ServerMessage{}, err
	}
	return models.ServerMessage{Type: msgType, Ride: payload}, nil
}
