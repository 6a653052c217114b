package ports

import (
	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/domain/model"
)

// ILedgerService is the command and query surface of the simulator. Command
// methods return the queued event; whether it applied is in its Status.
type ILedgerService interface {
	TopUp(passengerId string, amount int64, provider string) (*model.Event, error)
	PlaceTrip(passengerId, route string) (*model.Event, error)
	AssignTrip(tripId, vehicleId string) (*model.Event, error)
	StartTrip(tripId, vehicleId string) (*model.Event, error)
	EndTrip(tripId string) (*model.Event, error)
	CancelTrip(tripId string) (*model.Event, error)
	Settle() (*model.Event, error)

	// output: events that left pending during the call
	ProcessPending() []*model.Event
	SetOffline(offline bool) []*model.Event
	IsOffline() bool

	LoginPassenger(name string) (*model.Passenger, error)
	PassengerDetails(passengerId string) (dto.PassengerDetailsDto, error)
	Trip(tripId string) (*model.Trip, error)
	Trips(status model.TripStatus) []*model.Trip
	Vehicles() []*model.Vehicle
	ActiveTripsForVehicle(vehicleId string) []*model.Trip
	Events(status model.EventStatus) []*model.Event
	Settlements() []*model.SettlementBatch
	FareEstimate(route string) (dto.FareEstimateDto, error)
	Overview() dto.OverviewDto
}

type IAuthService interface {
	PassengerToken(name string) (dto.TokenResponse, error)
	OperatorToken(name, password string) (dto.TokenResponse, error)
}
