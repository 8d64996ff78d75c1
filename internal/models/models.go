package models

import (
	"encoding/json"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RideRequest is what the rider-facing API hands to dispatch. Vehicle is the
// requested vehicle class ("standard", "xl", ...); dispatch treats it as an
// opaque tag.
type RideRequest struct {
	RiderID     string `json:"rider_id"`
	Origin      Coord  `json:"origin"`
	Destination Coord  `json:"destination"`
	Vehicle     string `json:"vehicle"`
}

type Driver struct {
	ID      string    `json:"id"`
	Loc     Coord     `json:"loc"`
	Rating  float64   `json:"rating"` // 0..5
	Vehicle string    `json:"vehicle,omitempty"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

// OfferState is the lifecycle of a single offer to a single driver.
type OfferState string

const (
	OfferPending  OfferState = "PENDING"
	OfferAccepted OfferState = "ACCEPTED"
	OfferDeclined OfferState = "DECLINED"
	OfferExpired  OfferState = "EXPIRED"
)

// RideOffer is one time-bounded proposal of one ride to one driver. At most
// one PENDING offer may reference a driver at any instant.
type RideOffer struct {
	RideID   string     `json:"ride_id"`
	RiderID  string     `json:"rider_id"`
	DriverID string     `json:"driver_id"`
	IssuedAt time.Time  `json:"issued_at"`
	Deadline time.Time  `json:"deadline"`
	State    OfferState `json:"state"`
}

type Ride struct {
	ID          string
	RiderID     string
	DriverID    string
	Origin      Coord
	Destination Coord
	Vehicle     string
	Status      string // requested, booked, ongoing, completed, canceled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role tags a websocket connection. A connection starts unassigned and gets
// its role from the first register message it sends.
type Role string

const (
	RoleDriver     Role = "driver"
	RoleRider      Role = "rider"
	RoleUnassigned Role = "unassigned"
)

// ClientMessage is the envelope for everything a client sends over the
// socket; registration and offer responses share one shape.
type ClientMessage struct {
	Role     Role   `json:"role,omitempty"`
	Action   string `json:"action"`
	DriverID string `json:"driver_id,omitempty"`
	RiderID  string `json:"rider_id,omitempty"`
	RideID   string `json:"ride_id,omitempty"`
}

const (
	ActionRegister = "register"
	ActionAccepted = "accepted"
	ActionDeclined = "declined"
)

// ServerMessage is the envelope for everything pushed to a client.
type ServerMessage struct {
	Type string          `json:"type"`
	Ride json.RawMessage `json:"ride,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeNewRide = "new_ride"
	TypeExpired = "EXPIRED"
)

// OfferPayload is the ride portion of a new_ride push.
type OfferPayload struct {
	RideID      string `json:"ride_id"`
	RiderID     string `json:"rider_id"`
	Origin      Coord  `json:"origin"`
	Destination Coord  `json:"destination"`
	Vehicle     string `json:"vehicle"`
}
