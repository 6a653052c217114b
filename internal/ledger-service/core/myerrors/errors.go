package myerrors

import "errors"

// Request-shape errors. These are returned to the caller before anything is queued.
var (
	ErrEmptyField     = errors.New("field is empty")
	ErrFieldTooLong   = errors.New("field too long")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrUnknownCommand = errors.New("unknown command type")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("not allowed to act on this resource")
)

// Event failures. These are recorded on the event, never returned.
var (
	ErrPassengerMissing     = errors.New("passenger missing")
	ErrPassengerInTrip      = errors.New("passenger already in trip")
	ErrRouteMissing         = errors.New("route missing")
	ErrVehicleMissing       = errors.New("vehicle missing")
	ErrInsufficientEstimate = errors.New("insufficient balance for estimate")
	ErrInsufficientFare     = errors.New("insufficient balance at settlement")
	ErrProviderDeclined     = errors.New("provider declined transaction")
	ErrTripNotPlaced        = errors.New("trip not placed")
	ErrTripNotInProgress    = errors.New("trip not in progress")
	ErrTripNotCancellable   = errors.New("trip not cancellable")
	ErrTripNoVehicle        = errors.New("trip has no vehicle")
	ErrBadPayload           = errors.New("malformed payload")
)

// Auth errors.
var (
	ErrOperatorLoginDisabled = errors.New("operator login disabled")
	ErrBadCredentials        = errors.New("invalid credentials")
)

var ErrBrokerConnClose = errors.New("amqp connection closed")
