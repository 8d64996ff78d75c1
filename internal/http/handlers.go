package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/models"
)

func (s *Server) handleRideRequest(w http.ResponseWriter, r *http.Request) {
	var rr models.RideRequest
	if err := json.NewDecoder(r.Body).Decode(&rr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rr.RiderID == "" {
		http.Error(w, "rider_id required", http.StatusBadRequest)
		return
	}

	rideID := newID()
	now := time.Now()
	ride := &models.Ride{
		ID:          rideID,
		RiderID:     rr.RiderID,
		Origin:      rr.Origin,
		Destination: rr.Destination,
		Vehicle:     rr.Vehicle,
		Status:      "requested",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveRide(ride); err != nil {
		s.logger.Error("save_ride_failed", "ride_id", rideID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.publishEvent(ingest.RideEvent{Type: ingest.EventRideRequested, RideID: rideID, RiderID: rr.RiderID})

	cands, err := s.source.Candidates(r.Context(), rr.Origin, rr.Vehicle, s.cfg.CandidateTopN)
	if err != nil {
		s.logger.Error("candidate_lookup_failed", "ride_id", rideID, "error", err)
		cands = nil
	}

	// The request context doubles as the cancellation token: a rider
	// hanging up aborts the walk and frees any reserved driver.
	outcome := s.engine.Dispatch(r.Context(), rideID, rr, cands)

	switch outcome.Kind {
	case dispatch.OutcomeAccepted:
		if err := s.store.BookRide(rideID, outcome.DriverID); err != nil {
			s.logger.Error("book_ride_failed", "ride_id", rideID, "driver_id", outcome.DriverID, "error", err)
		}
		s.ledger.BeginTrip(outcome.DriverID)
		s.publishEvent(ingest.RideEvent{Type: ingest.EventRideBooked, RideID: rideID, RiderID: rr.RiderID, DriverID: outcome.DriverID})
		s.notifier.NotifyRole(models.RoleRider, "ride_booked", map[string]string{
			"ride_id":   rideID,
			"rider_id":  rr.RiderID,
			"driver_id": outcome.DriverID,
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"ride_id": rideID, "driver_id": outcome.DriverID, "status": "booked"})

	case dispatch.OutcomeNoDriverFound:
		_ = s.store.UpdateStatus(rideID, "canceled")
		s.publishEvent(ingest.RideEvent{Type: ingest.EventNoDriverFound, RideID: rideID, RiderID: rr.RiderID})
		http.Error(w, "no drivers available", http.StatusServiceUnavailable)

	case dispatch.OutcomeCancelled:
		_ = s.store.UpdateStatus(rideID, "canceled")
		// Client is usually gone already; the status code is best-effort.
		http.Error(w, "ride cancelled", statusClientClosedRequest)
	}
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	ride, err := s.store.Get(rideID)
	if err != nil {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if ride.Status != "booked" && ride.Status != "ongoing" {
		http.Error(w, "ride not active", http.StatusConflict)
		return
	}
	if err := s.store.UpdateStatus(rideID, "completed"); err != nil {
		s.logger.Error("complete_ride_failed", "ride_id", rideID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.ledger.EndTrip(ride.DriverID)
	s.publishEvent(ingest.RideEvent{Type: ingest.EventRideCompleted, RideID: rideID, RiderID: ride.RiderID, DriverID: ride.DriverID})
	s.notifier.NotifyRole(models.RoleRider, "ride_completed", map[string]string{
		"ride_id":  rideID,
		"rider_id": ride.RiderID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	d.Online = true

	if s.locations != nil {
		if err := s.locations.PublishLocation(d); err != nil {
			s.logger.Warn("location_publish_failed", "driver_id", d.ID, "error", err)
		}
	}
	// Update the candidate index directly as well so a single-node setup
	// does not depend on the consumer loop.
	switch src := s.source.(type) {
	case interface{ Upsert(models.Driver) }:
		src.Upsert(d)
	case interface {
		Upsert(context.Context, models.Driver) error
	}:
		if err := src.Upsert(r.Context(), d); err != nil {
			s.logger.Warn("geo_upsert_failed", "driver_id", d.ID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publishEvent(ev ingest.RideEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRideEvent(ev); err != nil {
		s.logger.Warn("ride_event_publish_failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}

// nginx convention for a client that closed the connection mid-request.
const statusClientClosedRequest = 499

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
