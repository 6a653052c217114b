package handle

import (
	"errors"
	"fmt"
	"net/http"

	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/domain/model"
	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

type LedgerHandler struct {
	ledgerService ports.ILedgerService
	log           mylogger.Logger
}

func NewLedgerHandler(ls ports.ILedgerService, log mylogger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ls,
		log:           log,
	}
}

// commandResult answers 202: the event may still be pending, its status says so.
func (lh *LedgerHandler) commandResult(w http.ResponseWriter, ev *model.Event, err error) {
	if err != nil {
		JsonError(w, statusFor(err), err)
		return
	}
	jsonResponse(w, http.StatusAccepted, dto.EventResponseDto{
		Event:   ev,
		Offline: lh.ledgerService.IsOffline(),
	})
}

func (lh *LedgerHandler) TopUp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		passengerId := r.PathValue("passenger_id")
		if err := canActFor(r, passengerId); err != nil {
			JsonError(w, http.StatusForbidden, err)
			return
		}

		req := dto.TopUpRequestDto{}
		if err := decodeBody(r, &req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		ev, err := lh.ledgerService.TopUp(passengerId, req.Amount, req.Provider)
		lh.commandResult(w, ev, err)
	}
}

func (lh *LedgerHandler) PlaceTrip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.PlaceTripRequestDto{}
		if err := decodeBody(r, &req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		if req.PassengerId == "" && !isAdmin(r) {
			req.PassengerId = r.Header.Get(HeaderUserId)
		}
		if err := canActFor(r, req.PassengerId); err != nil {
			JsonError(w, http.StatusForbidden, err)
			return
		}

		ev, err := lh.ledgerService.PlaceTrip(req.PassengerId, req.Route)
		lh.commandResult(w, ev, err)
	}
}

func (lh *LedgerHandler) CancelTrip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tripId := r.PathValue("trip_id")

		if !isAdmin(r) {
			trip, err := lh.ledgerService.Trip(tripId)
			if err != nil {
				JsonError(w, statusFor(err), err)
				return
			}
			if err := canActFor(r, trip.PassengerID); err != nil {
				JsonError(w, http.StatusForbidden, err)
				return
			}
		}

		ev, err := lh.ledgerService.CancelTrip(tripId)
		lh.commandResult(w, ev, err)
	}
}

func (lh *LedgerHandler) AssignTrip() http.HandlerFunc {
	return lh.tripCommand(lh.ledgerService.AssignTrip)
}

func (lh *LedgerHandler) StartTrip() http.HandlerFunc {
	return lh.tripCommand(lh.ledgerService.StartTrip)
}

func (lh *LedgerHandler) EndTrip() http.HandlerFunc {
	return lh.tripCommand(func(tripId, _ string) (*model.Event, error) {
		return lh.ledgerService.EndTrip(tripId)
	})
}

func (lh *LedgerHandler) tripCommand(do func(tripId, vehicleId string) (*model.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.TripCommandRequestDto{}
		if err := decodeBody(r, &req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		ev, err := do(r.PathValue("trip_id"), req.VehicleId)
		lh.commandResult(w, ev, err)
	}
}

func (lh *LedgerHandler) Settle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := lh.ledgerService.Settle()
		lh.commandResult(w, ev, err)
	}
}

func (lh *LedgerHandler) Settlements() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, lh.ledgerService.Settlements())
	}
}

// SetOffline switches the link; a body without "offline" toggles it.
func (lh *LedgerHandler) SetOffline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := lh.log.Action("SetOffline")

		req := dto.OfflineRequestDto{}
		if err := decodeBody(r, &req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		offline := !lh.ledgerService.IsOffline()
		if req.Offline != nil {
			offline = *req.Offline
		}

		processed := lh.ledgerService.SetOffline(offline)
		log.Info("offline mode changed", "offline", offline, "user-id", r.Header.Get(HeaderUserId))
		jsonResponse(w, http.StatusOK, dto.OfflineResponseDto{
			Offline:   offline,
			Processed: processed,
		})
	}
}

func (lh *LedgerHandler) ProcessPending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processed := lh.ledgerService.ProcessPending()
		jsonResponse(w, http.StatusOK, dto.OfflineResponseDto{
			Offline:   lh.ledgerService.IsOffline(),
			Processed: processed,
		})
	}
}

func (lh *LedgerHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.EventStatus(r.URL.Query().Get("status"))
		switch status {
		case "", model.EventPending, model.EventProcessed, model.EventFailed:
		default:
			JsonError(w, http.StatusBadRequest, fmt.Errorf("unknown event status %q", status))
			return
		}
		jsonResponse(w, http.StatusOK, lh.ledgerService.Events(status))
	}
}

func (lh *LedgerHandler) PassengerDetails() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		passengerId := r.PathValue("passenger_id")
		if err := canActFor(r, passengerId); err != nil {
			JsonError(w, http.StatusForbidden, err)
			return
		}

		res, err := lh.ledgerService.PassengerDetails(passengerId)
		if err != nil {
			JsonError(w, statusFor(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (lh *LedgerHandler) FareEstimate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Query().Get("route")
		if route == "" {
			JsonError(w, http.StatusBadRequest, fmt.Errorf("route: %w", myerrors.ErrEmptyField))
			return
		}
		res, err := lh.ledgerService.FareEstimate(route)
		if err != nil {
			JsonError(w, statusFor(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (lh *LedgerHandler) Overview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, lh.ledgerService.Overview())
	}
}

// RequireAdmin rejects callers whose token is not an operator token.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			JsonError(w, http.StatusForbidden, errors.New("only operators allowed to use this endpoint"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
