package services

import (
	"testing"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/myerrors"
)

// ride places, assigns, starts and (unless open) ends a trip.
func (tl *testLedger) ride(t *testing.T, passengerId, route, vehicleId string, duration time.Duration, open bool) string {
	t.Helper()
	mustProcessed(t)(tl.PlaceTrip(passengerId, route))
	var tripId string
	for _, trip := range tl.Trips("") {
		if trip.PassengerID == passengerId && trip.Status.Open() {
			tripId = trip.ID
		}
	}
	if tripId == "" {
		t.Fatalf("no open trip for %s", passengerId)
	}
	mustProcessed(t)(tl.AssignTrip(tripId, vehicleId))
	mustProcessed(t)(tl.StartTrip(tripId, ""))
	if open {
		return tripId
	}
	tl.clock.Advance(duration)
	mustProcessed(t)(tl.EndTrip(tripId))
	return tripId
}

func TestOverviewReports(t *testing.T) {
	tl := newTestLedger(t, noon)
	ama := tl.passenger(t, "Ama", 20000)

	ben, _ := tl.LoginPassenger("Ben")
	mustProcessed(t)(tl.TopUp(ben.ID, 30000, "Airtel Money"))

	tl.roll = 0.01
	ev, err := tl.TopUp(ben.ID, 90000, "MTN Momo")
	mustFail(t, ev, err, myerrors.ErrProviderDeclined)
	tl.roll = 0.99

	// ends 12:10
	tl.ride(t, ama.ID, "Central Loop", "veh-1", 10*time.Minute, false)

	// 14:00 is off-peak; ends 14:20
	tl.clock.Advance(time.Hour + 50*time.Minute)
	tl.ride(t, ben.ID, "Airport Express", "veh-2", 20*time.Minute, false)

	open := tl.ride(t, ama.ID, "Late Night", "veh-3", 0, true)

	ov := tl.Overview()

	if ov.TripsCompleted != 2 || ov.TotalRevenue != 9500 || ov.AvgFare != 4750 {
		t.Fatalf("completed = %d revenue = %d avg = %v; want 2, 9500, 4750", ov.TripsCompleted, ov.TotalRevenue, ov.AvgFare)
	}
	// 23 + 120
	if ov.TotalProviderFees != 143 {
		t.Fatalf("provider fees = %d; want 143", ov.TotalProviderFees)
	}

	wantRoutes := []dto.RouteRevenueDto{
		{Route: "Airport Express", Revenue: 8000, Trips: 1},
		{Route: "Central Loop", Revenue: 1500, Trips: 1},
	}
	if len(ov.RouteRevenue) != len(wantRoutes) {
		t.Fatalf("route revenue = %+v", ov.RouteRevenue)
	}
	for i, want := range wantRoutes {
		if ov.RouteRevenue[i] != want {
			t.Errorf("route revenue[%d] = %+v; want %+v", i, ov.RouteRevenue[i], want)
		}
	}

	total := 0
	for _, n := range ov.HourBuckets {
		total += n
	}
	if ov.HourBuckets[12] != 1 || ov.HourBuckets[14] != 1 || total != 2 {
		t.Fatalf("hour buckets = %v", ov.HourBuckets)
	}

	wantProviders := []dto.ProviderStatsDto{
		{Provider: "Airtel Money", Count: 1, Volume: 30000, Fees: 270},
		{Provider: "MockCard", Count: 1, Volume: 20000, Fees: 240},
	}
	if len(ov.ProviderStats) != len(wantProviders) {
		t.Fatalf("provider stats = %+v; declined top-ups must not count", ov.ProviderStats)
	}
	for i, want := range wantProviders {
		if ov.ProviderStats[i] != want {
			t.Errorf("provider stats[%d] = %+v; want %+v", i, ov.ProviderStats[i], want)
		}
	}

	loads := map[string][]string{}
	for _, v := range ov.Vehicles {
		loads[v.VehicleId] = v.ActiveTrips
	}
	if len(loads["veh-1"]) != 0 || len(loads["veh-2"]) != 0 {
		t.Fatalf("finished trips still on vehicles: %v", loads)
	}
	if got := loads["veh-3"]; len(got) != 1 || got[0] != open {
		t.Fatalf("veh-3 active trips = %v; want [%s]", got, open)
	}
}

func TestOverviewHourBucketsUseLedgerZone(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	tl := newTestLedger(t, noon)
	tl.loc = loc
	p := tl.passenger(t, "Kato", 20000)

	// 12:00 UTC placed; 15:30 local at the end, off-peak in both zones
	tl.ride(t, p.ID, "Central Loop", "veh-1", 30*time.Minute, false)

	ov := tl.Overview()
	if ov.HourBuckets[15] != 1 || ov.HourBuckets[12] != 0 {
		t.Fatalf("hour buckets = %v; want the trip in local hour 15", ov.HourBuckets)
	}
}
