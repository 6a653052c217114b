package services

import (
	"context"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

// Autopilot moves trips along so the demo runs without an operator:
// it assigns idle vehicles, starts assigned trips and ends trips that ran
// longer than tripDuration. It only issues commands, so offline mode
// defers its work like any other client.
type Autopilot struct {
	mylog        mylogger.Logger
	ledger       ports.ILedgerService
	interval     time.Duration
	tripDuration time.Duration
	now          func() time.Time
}

func NewAutopilot(log mylogger.Logger, ledger ports.ILedgerService, interval, tripDuration time.Duration) *Autopilot {
	return &Autopilot{
		mylog:        log,
		ledger:       ledger,
		interval:     interval,
		tripDuration: tripDuration,
		now:          time.Now,
	}
}

func (a *Autopilot) Run(ctx context.Context) {
	log := a.mylog.Action("autopilot")
	t := time.NewTicker(a.interval)
	defer t.Stop()

	log.Info("autopilot started", "interval", a.interval.String(), "trip-duration", a.tripDuration.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("autopilot stopped")
			return
		case <-t.C:
			a.Tick()
		}
	}
}

// Tick runs one pass. Nothing happens while the link is down: commands would
// only pile up as pending duplicates.
func (a *Autopilot) Tick() {
	if a.ledger.IsOffline() {
		return
	}
	log := a.mylog.Action("autopilot_tick")

	placed := a.ledger.Trips(model.TripPlaced)
	running := a.ledger.Trips(model.TripInProgress)

	// inUse: vehicles driving a trip. reserved: inUse plus vehicles already
	// assigned to a placed trip.
	inUse := map[string]bool{}
	reserved := map[string]bool{}
	for _, t := range running {
		inUse[t.VehicleID] = true
		reserved[t.VehicleID] = true
	}
	for _, t := range placed {
		if t.VehicleID != "" {
			reserved[t.VehicleID] = true
		}
	}

	for _, t := range running {
		if t.StartTs == nil || a.now().Sub(*t.StartTs) < a.tripDuration {
			continue
		}
		a.issue(log, model.EventEndTrip, func() (*model.Event, error) { return a.ledger.EndTrip(t.ID) })
	}

	for _, t := range placed {
		if t.VehicleID != "" {
			if inUse[t.VehicleID] {
				continue
			}
			inUse[t.VehicleID] = true
			a.issue(log, model.EventStartTrip, func() (*model.Event, error) { return a.ledger.StartTrip(t.ID, "") })
			continue
		}

		vehicleId := a.idleVehicle(reserved)
		if vehicleId == "" {
			log.Debug("no idle vehicle", "trip-id", t.ID)
			continue
		}
		reserved[vehicleId] = true
		a.issue(log, model.EventAssignTrip, func() (*model.Event, error) { return a.ledger.AssignTrip(t.ID, vehicleId) })
	}
}

func (a *Autopilot) idleVehicle(reserved map[string]bool) string {
	for _, v := range a.ledger.Vehicles() {
		if !reserved[v.ID] {
			return v.ID
		}
	}
	return ""
}

func (a *Autopilot) issue(log mylogger.Logger, t model.EventType, cmd func() (*model.Event, error)) {
	ev, err := cmd()
	if err != nil {
		log.Error("autopilot command rejected", err, "type", t)
		return
	}
	autopilotCommands.WithLabelValues(string(t)).Inc()
	log.Debug("autopilot command", "type", t, "event-id", ev.ID, "status", ev.Status)
}
