package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

const (
	MaxPassengerNameLen = 100
	sideEffectTimeout   = 15 * time.Second
)

type LedgerOptions struct {
	Offline     bool
	DeclineRate float64
	Location    *time.Location
	// Now and Rand default to time.Now and math/rand.
	Now  func() time.Time
	Rand func() float64
}

type LedgerService struct {
	ctx             context.Context
	mylog           mylogger.Logger
	LedgerRepo      ports.ILedgerRepo
	LedgerBroker    ports.ILedgerBroker
	LedgerWebsocket ports.INotifyWebsocket

	declineRate float64
	loc         *time.Location
	now         func() time.Time
	rand        func() float64

	mu    sync.RWMutex
	state *model.State
	// version increases with every mutation; savedVersion guards against
	// an older snapshot overwriting a newer one.
	version      uint64
	saveMu       sync.Mutex
	savedVersion uint64
}

func NewLedgerService(ctx context.Context,
	log mylogger.Logger,
	LedgerRepo ports.ILedgerRepo,
	LedgerBroker ports.ILedgerBroker,
	LedgerWebsocket ports.INotifyWebsocket,
	opts LedgerOptions,
) *LedgerService {
	ls := &LedgerService{
		ctx:             ctx,
		mylog:           log,
		LedgerRepo:      LedgerRepo,
		LedgerBroker:    LedgerBroker,
		LedgerWebsocket: LedgerWebsocket,
		declineRate:     opts.DeclineRate,
		loc:             opts.Location,
		now:             opts.Now,
		rand:            opts.Rand,
		state:           model.NewState(),
	}
	if ls.loc == nil {
		ls.loc = time.Local
	}
	if ls.now == nil {
		ls.now = time.Now
	}
	if ls.rand == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		var rmu sync.Mutex
		ls.rand = func() float64 {
			rmu.Lock()
			defer rmu.Unlock()
			return r.Float64()
		}
	}
	ls.state.Offline = opts.Offline
	return ls
}

// Restore replaces the in-memory state with the last saved snapshot, if any.
// The offline flag from options wins over the persisted one only when set.
func (ls *LedgerService) Restore(ctx context.Context) error {
	log := ls.mylog.Action("Restore")
	if ls.LedgerRepo == nil {
		return nil
	}
	saved, err := ls.LedgerRepo.Load(ctx)
	if err != nil {
		log.Error("cannot load ledger snapshot", err)
		return fmt.Errorf("load snapshot: %w", err)
	}
	if saved == nil {
		log.Info("no snapshot found, starting from seeded state")
		return nil
	}
	if len(saved.Vehicles) == 0 {
		saved.Vehicles = model.DefaultVehicles()
	}
	if len(saved.Routes) == 0 {
		saved.Routes = model.DefaultRoutes()
	}

	ls.mu.Lock()
	saved.Offline = saved.Offline || ls.state.Offline
	ls.state = saved
	pending := ls.countPending()
	ls.mu.Unlock()

	pendingEvents.Set(float64(pending))
	log.Info("ledger restored", "passengers", len(saved.Passengers), "trips", len(saved.Trips), "pending-events", pending)
	return nil
}

// ======================= Commands =======================

func (ls *LedgerService) TopUp(passengerId string, amount int64, provider string) (*model.Event, error) {
	if err := validateId(passengerId); err != nil {
		return nil, fmt.Errorf("invalid passenger id: %w", err)
	}
	if amount <= 0 {
		return nil, myerrors.ErrInvalidAmount
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DEFAULT_PROVIDER
	}
	fee, credited := ComputeTopUpFees(provider, amount)
	return ls.Enqueue(model.EventTopUp, model.TopUpPayload{
		PassengerID:    passengerId,
		Provider:       provider,
		AmountOriginal: amount,
		Fee:            fee,
		AmountCredited: credited,
	})
}

func (ls *LedgerService) PlaceTrip(passengerId, route string) (*model.Event, error) {
	if err := validateId(passengerId); err != nil {
		return nil, fmt.Errorf("invalid passenger id: %w", err)
	}
	if err := validateId(route); err != nil {
		return nil, fmt.Errorf("invalid route: %w", err)
	}
	return ls.Enqueue(model.EventPlaceTrip, model.PlaceTripPayload{PassengerID: passengerId, Route: route})
}

func (ls *LedgerService) AssignTrip(tripId, vehicleId string) (*model.Event, error) {
	if err := validateId(tripId); err != nil {
		return nil, fmt.Errorf("invalid trip id: %w", err)
	}
	if err := validateId(vehicleId); err != nil {
		return nil, fmt.Errorf("invalid vehicle id: %w", err)
	}
	return ls.Enqueue(model.EventAssignTrip, model.TripPayload{TripID: tripId, VehicleID: vehicleId})
}

// StartTrip accepts an empty vehicleId when the trip was assigned beforehand.
func (ls *LedgerService) StartTrip(tripId, vehicleId string) (*model.Event, error) {
	if err := validateId(tripId); err != nil {
		return nil, fmt.Errorf("invalid trip id: %w", err)
	}
	return ls.Enqueue(model.EventStartTrip, model.TripPayload{TripID: tripId, VehicleID: vehicleId})
}

func (ls *LedgerService) EndTrip(tripId string) (*model.Event, error) {
	if err := validateId(tripId); err != nil {
		return nil, fmt.Errorf("invalid trip id: %w", err)
	}
	return ls.Enqueue(model.EventEndTrip, model.TripPayload{TripID: tripId})
}

func (ls *LedgerService) CancelTrip(tripId string) (*model.Event, error) {
	if err := validateId(tripId); err != nil {
		return nil, fmt.Errorf("invalid trip id: %w", err)
	}
	return ls.Enqueue(model.EventCancelTrip, model.TripPayload{TripID: tripId})
}

func (ls *LedgerService) Settle() (*model.Event, error) {
	return ls.Enqueue(model.EventSettle, model.SettlePayload{})
}

// Enqueue appends an event. Online it is applied right away, offline it
// stays pending until ProcessPending or SetOffline(false).
func (ls *LedgerService) Enqueue(t model.EventType, payload any) (*model.Event, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", myerrors.ErrUnknownCommand, t)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var queued *model.Event
	ls.mutate(func() []*model.Event {
		ev := &model.Event{
			ID:      model.NewID("EV_"),
			Type:    t,
			Payload: body,
			Ts:      ls.now(),
			Status:  model.EventPending,
		}
		ls.state.Events = append(ls.state.Events, ev)

		if ls.state.Offline {
			queued = ev.Clone()
			return nil
		}
		ls.apply(ev)
		queued = ev.Clone()
		return []*model.Event{ev}
	})

	log := ls.mylog.Action("Enqueue").With("event-id", queued.ID, "type", queued.Type, "status", queued.Status)
	if queued.Status == model.EventFailed {
		log.Warn("event failed", "reason", queued.Error)
	} else {
		log.Debug("event queued")
	}
	return queued, nil
}

// ProcessPending drains pending events oldest first.
func (ls *LedgerService) ProcessPending() []*model.Event {
	return ls.mutate(ls.drainPending)
}

// SetOffline switches the simulated link. Going online drains the queue and
// returns the events that were applied.
func (ls *LedgerService) SetOffline(offline bool) []*model.Event {
	log := ls.mylog.Action("SetOffline")
	done := ls.mutate(func() []*model.Event {
		ls.state.Offline = offline
		if offline {
			return nil
		}
		return ls.drainPending()
	})
	log.Info("link switched", "offline", offline, "replayed", len(done))
	return done
}

func (ls *LedgerService) ToggleOffline() (bool, []*model.Event) {
	offline := !ls.IsOffline()
	return offline, ls.SetOffline(offline)
}

func (ls *LedgerService) IsOffline() bool {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.state.Offline
}

// LoginPassenger finds a passenger by case-insensitive name or registers one
// with an empty wallet.
func (ls *LedgerService) LoginPassenger(name string) (*model.Passenger, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("invalid name: %w", err)
	}

	var out *model.Passenger
	ls.mutate(func() []*model.Event {
		p := ls.state.PassengerByName(name)
		if p == nil {
			p = &model.Passenger{
				ID:      model.NewID("P"),
				Name:    name,
				Created: ls.now(),
			}
			ls.state.Passengers = append(ls.state.Passengers, p)
			ls.mylog.Action("LoginPassenger").Info("passenger registered", "passenger-id", p.ID)
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, nil
}

// ======================= Event application =======================

func (ls *LedgerService) drainPending() []*model.Event {
	var done []*model.Event
	for _, ev := range ls.state.Events {
		if ev.Status != model.EventPending {
			continue
		}
		ls.apply(ev)
		done = append(done, ev)
	}
	return done
}

// apply runs one event against the state. Precondition failures mark only this
// event failed; mutations the handler already made are kept.
func (ls *LedgerService) apply(ev *model.Event) {
	var err error
	switch ev.Type {
	case model.EventTopUp:
		err = ls.applyTopUp(ev)
	case model.EventPlaceTrip:
		err = ls.applyPlaceTrip(ev)
	case model.EventAssignTrip:
		err = ls.applyAssignTrip(ev)
	case model.EventStartTrip:
		err = ls.applyStartTrip(ev)
	case model.EventEndTrip:
		err = ls.applyEndTrip(ev)
	case model.EventCancelTrip:
		err = ls.applyCancelTrip(ev)
	case model.EventSettle:
		err = ls.applySettle(ev)
	default:
		err = myerrors.ErrUnknownCommand
	}

	if err != nil {
		ev.Status = model.EventFailed
		ev.Error = err.Error()
	} else {
		ev.Status = model.EventProcessed
		ev.Error = ""
	}
	eventsTotal.WithLabelValues(string(ev.Type), string(ev.Status)).Inc()
}

func (ls *LedgerService) applyTopUp(ev *model.Event) error {
	var p model.TopUpPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	ev.PassengerID = p.PassengerID

	passenger := ls.state.Passenger(p.PassengerID)
	if passenger == nil {
		return myerrors.ErrPassengerMissing
	}

	rec := &model.TopUpRecord{
		ID:             model.NewID("TU_"),
		PassengerID:    p.PassengerID,
		Provider:       p.Provider,
		AmountOriginal: p.AmountOriginal,
		Fee:            p.Fee,
		AmountCredited: p.AmountCredited,
		Ts:             ev.Ts,
		Status:         model.TopUpSuccess,
	}
	// providers only decline live requests; replay while offline never rolls
	if !ls.state.Offline && ls.rand() < ls.declineRate {
		rec.Status = model.TopUpFailed
		ls.state.TopUps = append(ls.state.TopUps, rec)
		return myerrors.ErrProviderDeclined
	}

	passenger.Wallet += p.AmountCredited
	ls.state.TopUps = append(ls.state.TopUps, rec)
	return nil
}

func (ls *LedgerService) applyPlaceTrip(ev *model.Event) error {
	var p model.PlaceTripPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	ev.PassengerID = p.PassengerID

	passenger := ls.state.Passenger(p.PassengerID)
	if passenger == nil {
		return myerrors.ErrPassengerMissing
	}
	if passenger.ActiveTripID != "" || ls.state.OpenTrip(passenger.ID) != nil {
		return myerrors.ErrPassengerInTrip
	}
	route := ls.state.Route(p.Route)
	if route == nil {
		return myerrors.ErrRouteMissing
	}

	// surge follows the hour the passenger asked, not the replay hour
	surge := SurgeMultiplier(ev.Ts.In(ls.loc))
	estimate := EstimateFare(route, surge)
	if passenger.Wallet < estimate {
		return myerrors.ErrInsufficientEstimate
	}

	ls.state.Trips = append(ls.state.Trips, &model.Trip{
		ID:              model.NewID("T_"),
		PassengerID:     passenger.ID,
		Route:           route.Name,
		PlacedTs:        ev.Ts,
		FareEstimate:    estimate,
		Status:          model.TripPlaced,
		SurgeMultiplier: surge,
	})
	return nil
}

func (ls *LedgerService) applyAssignTrip(ev *model.Event) error {
	var p model.TripPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	trip := ls.state.Trip(p.TripID)
	if trip == nil || trip.Status != model.TripPlaced {
		return myerrors.ErrTripNotPlaced
	}
	ev.PassengerID = trip.PassengerID
	if ls.state.Vehicle(p.VehicleID) == nil {
		return myerrors.ErrVehicleMissing
	}
	trip.VehicleID = p.VehicleID
	return nil
}

func (ls *LedgerService) applyStartTrip(ev *model.Event) error {
	var p model.TripPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	trip := ls.state.Trip(p.TripID)
	if trip == nil || trip.Status != model.TripPlaced {
		return myerrors.ErrTripNotPlaced
	}
	ev.PassengerID = trip.PassengerID

	if trip.VehicleID == "" {
		if p.VehicleID == "" {
			return myerrors.ErrTripNoVehicle
		}
		if ls.state.Vehicle(p.VehicleID) == nil {
			return myerrors.ErrVehicleMissing
		}
		trip.VehicleID = p.VehicleID
	}

	startTs := ev.Ts
	trip.StartTs = &startTs
	trip.Status = model.TripInProgress
	if passenger := ls.state.Passenger(trip.PassengerID); passenger != nil {
		passenger.ActiveTripID = trip.ID
	}
	return nil
}

// applyEndTrip charges the fare now. A balance that was enough at placement
// may not be enough any more; the trip then fails and the event records why.
func (ls *LedgerService) applyEndTrip(ev *model.Event) error {
	var p model.TripPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	trip := ls.state.Trip(p.TripID)
	if trip == nil || trip.Status != model.TripInProgress {
		return myerrors.ErrTripNotInProgress
	}
	ev.PassengerID = trip.PassengerID

	passenger := ls.state.Passenger(trip.PassengerID)
	if passenger == nil {
		return myerrors.ErrPassengerMissing
	}

	fare := int64(FALLBACK_FARE)
	if route := ls.state.Route(trip.Route); route != nil {
		fare = EstimateFare(route, trip.SurgeMultiplier)
	}

	endTs := ls.now()
	trip.EndTs = &endTs
	if passenger.ActiveTripID == trip.ID {
		passenger.ActiveTripID = ""
	}

	if passenger.Wallet < fare {
		trip.Status = model.TripFailed
		return myerrors.ErrInsufficientFare
	}

	passenger.Wallet -= fare
	providerFee := TripProviderFee(fare)
	trip.Fare = fare
	trip.Status = model.TripCompleted

	ls.state.Receipts = append(ls.state.Receipts, &model.Receipt{
		ID:          model.NewID("R_"),
		TripID:      trip.ID,
		PassengerID: trip.PassengerID,
		Route:       trip.Route,
		Fare:        fare,
		ProviderFee: providerFee,
		Net:         fare - providerFee,
		Ts:          endTs,
	})
	return nil
}

func (ls *LedgerService) applyCancelTrip(ev *model.Event) error {
	var p model.TripPayload
	if err := decodePayload(ev, &p); err != nil {
		return err
	}
	trip := ls.state.Trip(p.TripID)
	if trip == nil || !trip.Status.Open() {
		return myerrors.ErrTripNotCancellable
	}
	ev.PassengerID = trip.PassengerID

	endTs := ls.now()
	trip.Status = model.TripCancelled
	trip.EndTs = &endTs
	if passenger := ls.state.Passenger(trip.PassengerID); passenger != nil && passenger.ActiveTripID == trip.ID {
		passenger.ActiveTripID = ""
	}
	return nil
}

// applySettle folds receipts that no batch covers yet. Nothing new means no batch.
func (ls *LedgerService) applySettle(ev *model.Event) error {
	fresh := ls.state.Receipts[ls.state.SettledReceipts:]
	if len(fresh) == 0 {
		return nil
	}

	var gross, fees int64
	for _, r := range fresh {
		gross += r.Fare
		fees += r.ProviderFee
	}
	ls.state.Settlements = append(ls.state.Settlements, &model.SettlementBatch{
		ID:           model.NewID("SB_"),
		Ts:           ev.Ts,
		Trips:        len(fresh),
		Gross:        gross,
		ProviderFees: fees,
		Net:          gross - fees,
	})
	ls.state.SettledReceipts = len(ls.state.Receipts)
	return nil
}

// ======================= Side effects =======================

// mutate runs fn under the write lock, then publishes, pushes and persists
// copies of what changed once the lock is released.
func (ls *LedgerService) mutate(fn func() []*model.Event) []*model.Event {
	ls.mu.Lock()
	finished := fn()
	out := make([]*model.Event, 0, len(finished))
	for _, ev := range finished {
		out = append(out, ev.Clone())
	}
	ls.version++
	version := ls.version
	snapshot := ls.state.Clone()
	pending := ls.countPending()
	ls.mu.Unlock()

	pendingEvents.Set(float64(pending))
	ls.notify(out)
	ls.persist(version, snapshot)
	return out
}

func (ls *LedgerService) notify(events []*model.Event) {
	log := ls.mylog.Action("notify")
	for _, ev := range events {
		if ls.LedgerBroker != nil {
			ctx, cancel := context.WithTimeout(ls.ctx, sideEffectTimeout)
			if err := ls.LedgerBroker.PublishEvent(ctx, ev); err != nil {
				log.Error("cannot publish event", err, "event-id", ev.ID)
			}
			cancel()
		}

		if ls.LedgerWebsocket != nil && ev.PassengerID != "" {
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error("cannot marshal event", err, "event-id", ev.ID)
				continue
			}
			ls.LedgerWebsocket.WriteToUser(ev.PassengerID, websocketdto.Event{
				Type: websocketdto.TypeLedgerEvent,
				Data: data,
			})
		}
	}
}

func (ls *LedgerService) persist(version uint64, snapshot *model.State) {
	if ls.LedgerRepo == nil {
		return
	}
	ls.saveMu.Lock()
	defer ls.saveMu.Unlock()
	if version <= ls.savedVersion {
		return
	}

	ctx, cancel := context.WithTimeout(ls.ctx, sideEffectTimeout)
	defer cancel()
	if err := ls.LedgerRepo.Save(ctx, snapshot); err != nil {
		ls.mylog.Action("persist").Error("cannot save ledger snapshot", err, "version", version)
		return
	}
	ls.savedVersion = version
}

func (ls *LedgerService) countPending() int {
	n := 0
	for _, ev := range ls.state.Events {
		if ev.Status == model.EventPending {
			n++
		}
	}
	return n
}

// ======================= Validation =======================

func decodePayload(ev *model.Event, v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", myerrors.ErrBadPayload, err)
	}
	return nil
}

func validateId(id string) error {
	if strings.TrimSpace(id) == "" {
		return myerrors.ErrEmptyField
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return myerrors.ErrEmptyField
	}
	if len(name) > MaxPassengerNameLen {
		return fmt.Errorf("%w: maximum %d characters allowed", myerrors.ErrFieldTooLong, MaxPassengerNameLen)
	}
	return nil
}

// IsValidationError reports whether err came from request checks rather than infrastructure.
func IsValidationError(err error) bool {
	return errors.Is(err, myerrors.ErrEmptyField) ||
		errors.Is(err, myerrors.ErrInvalidAmount) ||
		errors.Is(err, myerrors.ErrUnknownCommand) ||
		errors.Is(err, myerrors.ErrFieldTooLong)
}
