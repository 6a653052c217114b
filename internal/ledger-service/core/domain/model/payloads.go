package model

// Bodies stored in Event.Payload, one per event type.

type TopUpPayload struct {
	PassengerID    string `json:"passenger_id"`
	Provider       string `json:"provider"`
	AmountOriginal int64  `json:"amount_original"`
	Fee            int64  `json:"fee"`
	AmountCredited int64  `json:"amount_credited"`
}

type PlaceTripPayload struct {
	PassengerID string `json:"passenger_id"`
	Route       string `json:"route"`
}

// TripPayload serves ASSIGN_TRIP, START_TRIP, END_TRIP and CANCEL_TRIP.
type TripPayload struct {
	TripID    string `json:"trip_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

type SettlePayload struct{}
