package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
	"transit-ledger/internal/mylogger"
)

type fakeRepo struct {
	mu    sync.Mutex
	saved *model.State
	saves int
	load  *model.State
}

func (f *fakeRepo) Load(ctx context.Context) (*model.State, error) {
	return f.load, nil
}

func (f *fakeRepo) Save(ctx context.Context, state *model.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = state
	f.saves++
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]websocketdto.Event
}

func (f *fakeNotifier) WriteToUser(passengerId string, msg websocketdto.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string][]websocketdto.Event{}
	}
	f.sent[passengerId] = append(f.sent[passengerId], msg)
}

func (f *fakeNotifier) count(passengerId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[passengerId])
}

// clock is a settable time source shared by the ledger and the autopilot.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// noon is off-peak.
var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type testLedger struct {
	*LedgerService
	repo  *fakeRepo
	ws    *fakeNotifier
	clock *clock
	// roll is what the decline check draws; above the rate means accepted.
	roll float64
}

func newTestLedger(t *testing.T, at time.Time) *testLedger {
	t.Helper()
	tl := &testLedger{
		repo:  &fakeRepo{},
		ws:    &fakeNotifier{},
		clock: &clock{t: at},
		roll:  0.99,
	}
	tl.LedgerService = NewLedgerService(context.Background(), mylogger.Discard(), tl.repo, nil, tl.ws, LedgerOptions{
		DeclineRate: 0.05,
		Location:    time.UTC,
		Now:         tl.clock.Now,
		Rand:        func() float64 { return tl.roll },
	})
	return tl
}

// passenger logs in and tops up through MockCard (1.2%, no fixed fee).
func (tl *testLedger) passenger(t *testing.T, name string, topUp int64) *model.Passenger {
	t.Helper()
	p, err := tl.LoginPassenger(name)
	if err != nil {
		t.Fatalf("LoginPassenger(%q): %v", name, err)
	}
	if topUp > 0 {
		ev, err := tl.TopUp(p.ID, topUp, "MockCard")
		if err != nil {
			t.Fatalf("TopUp: %v", err)
		}
		if ev.Status != model.EventProcessed {
			t.Fatalf("TopUp status = %s (%s)", ev.Status, ev.Error)
		}
	}
	return p
}

func (tl *testLedger) wallet(t *testing.T, passengerId string) int64 {
	t.Helper()
	d, err := tl.PassengerDetails(passengerId)
	if err != nil {
		t.Fatalf("PassengerDetails: %v", err)
	}
	return d.Passenger.Wallet
}

func mustProcessed(t *testing.T) func(ev *model.Event, err error) *model.Event {
	return func(ev *model.Event, err error) *model.Event {
		t.Helper()
		if err != nil {
			t.Fatalf("command error: %v", err)
		}
		if ev.Status != model.EventProcessed {
			t.Fatalf("%s status = %s, error %q; want processed", ev.Type, ev.Status, ev.Error)
		}
		return ev
	}
}

func mustFail(t *testing.T, ev *model.Event, err error, want error) {
	t.Helper()
	if err != nil {
		t.Fatalf("command error: %v", err)
	}
	if ev.Status != model.EventFailed {
		t.Fatalf("%s status = %s; want failed", ev.Type, ev.Status)
	}
	if ev.Error != want.Error() {
		t.Fatalf("%s error = %q; want %q", ev.Type, ev.Error, want.Error())
	}
}

// onlyTrip returns the single trip of the passenger.
func (tl *testLedger) onlyTrip(t *testing.T, passengerId string) *model.Trip {
	t.Helper()
	d, err := tl.PassengerDetails(passengerId)
	if err != nil {
		t.Fatalf("PassengerDetails: %v", err)
	}
	if len(d.Trips) != 1 {
		t.Fatalf("passenger has %d trips; want 1", len(d.Trips))
	}
	return d.Trips[0]
}
