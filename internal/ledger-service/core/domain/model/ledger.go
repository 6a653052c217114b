package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTopUp      EventType = "TOP_UP"
	EventPlaceTrip  EventType = "PLACE_TRIP"
	EventAssignTrip EventType = "ASSIGN_TRIP"
	EventStartTrip  EventType = "START_TRIP"
	EventEndTrip    EventType = "END_TRIP"
	EventCancelTrip EventType = "CANCEL_TRIP"
	EventSettle     EventType = "SETTLE"
)

var EventTypes = []EventType{
	EventTopUp, EventPlaceTrip, EventAssignTrip, EventStartTrip, EventEndTrip, EventCancelTrip, EventSettle,
}

func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventProcessed EventStatus = "processed"
	EventFailed    EventStatus = "failed"
)

// Event is one queued command. Payload keeps the command body as submitted;
// after the event leaves pending only Status, Error and PassengerID change.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Ts          time.Time       `json:"ts"`
	Status      EventStatus     `json:"status"`
	Error       string          `json:"error,omitempty"`
	PassengerID string          `json:"passenger_id,omitempty"`
}

type TripStatus string

const (
	TripPlaced     TripStatus = "placed"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
	TripFailed     TripStatus = "failed"
)

// Open reports whether the trip still counts against the passenger's single active slot.
func (s TripStatus) Open() bool {
	return s == TripPlaced || s == TripInProgress
}

type Passenger struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Wallet       int64     `json:"wallet"`
	Created      time.Time `json:"created"`
	ActiveTripID string    `json:"active_trip_id,omitempty"`
}

type Vehicle struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Route struct {
	Name       string  `json:"name"`
	BaseFare   int64   `json:"base_fare"`
	DistanceKm float64 `json:"distance_km"`
}

type Trip struct {
	ID              string     `json:"id"`
	PassengerID     string     `json:"passenger_id"`
	VehicleID       string     `json:"vehicle_id,omitempty"`
	Route           string     `json:"route"`
	PlacedTs        time.Time  `json:"placed_ts"`
	StartTs         *time.Time `json:"start_ts,omitempty"`
	EndTs           *time.Time `json:"end_ts,omitempty"`
	FareEstimate    int64      `json:"fare_estimate"`
	Fare            int64      `json:"fare,omitempty"`
	Status          TripStatus `json:"status"`
	SurgeMultiplier float64    `json:"surge_multiplier"`
}

type Receipt struct {
	ID          string    `json:"id"`
	TripID      string    `json:"trip_id"`
	PassengerID string    `json:"passenger_id"`
	Route       string    `json:"route"`
	Fare        int64     `json:"fare"`
	ProviderFee int64     `json:"provider_fee"`
	Net         int64     `json:"net"`
	Ts          time.Time `json:"ts"`
}

type TopUpStatus string

const (
	TopUpSuccess TopUpStatus = "success"
	TopUpFailed  TopUpStatus = "failed"
)

type TopUpRecord struct {
	ID             string      `json:"id"`
	PassengerID    string      `json:"passenger_id"`
	Provider       string      `json:"provider"`
	AmountOriginal int64       `json:"amount_original"`
	Fee            int64       `json:"fee"`
	AmountCredited int64       `json:"amount_credited"`
	Ts             time.Time   `json:"ts"`
	Status         TopUpStatus `json:"status"`
}

type SettlementBatch struct {
	ID           string    `json:"id"`
	Ts           time.Time `json:"ts"`
	Trips        int       `json:"trips"`
	Gross        int64     `json:"gross"`
	ProviderFees int64     `json:"provider_fees"`
	Net          int64     `json:"net"`
}
