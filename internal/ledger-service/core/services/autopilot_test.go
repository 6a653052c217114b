package services

import (
	"context"
	"testing"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	"transit-ledger/internal/mylogger"
)

func newTestAutopilot(tl *testLedger) *Autopilot {
	a := NewAutopilot(mylogger.Discard(), tl.LedgerService, time.Second, 30*time.Second)
	a.now = tl.clock.Now
	return a
}

func TestAutopilotDrivesTripToCompletion(t *testing.T) {
	tl := newTestLedger(t, noon)
	a := newTestAutopilot(tl)
	p := tl.passenger(t, "Quinn", 20000)
	mustProcessed(t)(tl.PlaceTrip(p.ID, "Central Loop"))

	a.Tick()
	trip := tl.onlyTrip(t, p.ID)
	if trip.Status != model.TripPlaced || trip.VehicleID != "veh-1" {
		t.Fatalf("after first tick: %s on %q; want placed on veh-1", trip.Status, trip.VehicleID)
	}

	a.Tick()
	if trip = tl.onlyTrip(t, p.ID); trip.Status != model.TripInProgress {
		t.Fatalf("after second tick: %s; want in_progress", trip.Status)
	}

	tl.clock.Advance(10 * time.Second)
	a.Tick()
	if trip = tl.onlyTrip(t, p.ID); trip.Status != model.TripInProgress {
		t.Fatalf("trip ended early: %s", trip.Status)
	}

	tl.clock.Advance(30 * time.Second)
	a.Tick()
	if trip = tl.onlyTrip(t, p.ID); trip.Status != model.TripCompleted {
		t.Fatalf("after trip duration: %s; want completed", trip.Status)
	}
}

func TestAutopilotUsesDistinctVehicles(t *testing.T) {
	tl := newTestLedger(t, noon)
	a := newTestAutopilot(tl)

	var ids []string
	for _, name := range []string{"Rae", "Sam", "Tom", "Uma"} {
		p := tl.passenger(t, name, 20000)
		mustProcessed(t)(tl.PlaceTrip(p.ID, "Central Loop"))
		ids = append(ids, p.ID)
	}

	a.Tick()
	a.Tick()

	used := map[string]string{}
	waiting := 0
	for _, id := range ids {
		trip := tl.onlyTrip(t, id)
		if trip.VehicleID == "" {
			waiting++
			continue
		}
		if other, ok := used[trip.VehicleID]; ok {
			t.Fatalf("vehicle %s serves %s and %s", trip.VehicleID, other, trip.ID)
		}
		used[trip.VehicleID] = trip.ID
		if trip.Status != model.TripInProgress {
			t.Fatalf("trip %s on %s is %s; want in_progress", trip.ID, trip.VehicleID, trip.Status)
		}
	}
	if len(used) != 3 || waiting != 1 {
		t.Fatalf("used %d vehicles with %d waiting; want 3 and 1", len(used), waiting)
	}
}

func TestAutopilotIdleWhileOffline(t *testing.T) {
	tl := newTestLedger(t, noon)
	a := newTestAutopilot(tl)
	p := tl.passenger(t, "Val", 20000)
	mustProcessed(t)(tl.PlaceTrip(p.ID, "Central Loop"))

	tl.SetOffline(true)
	before := len(tl.Events(""))
	a.Tick()
	if after := len(tl.Events("")); after != before {
		t.Fatalf("autopilot queued %d events while offline", after-before)
	}
}

func TestAutopilotRunStopsOnCancel(t *testing.T) {
	tl := newTestLedger(t, noon)
	a := NewAutopilot(mylogger.Discard(), tl.LedgerService, time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
