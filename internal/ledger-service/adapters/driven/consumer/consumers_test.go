package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	messagebrokerdto "transit-ledger/internal/ledger-service/core/domain/message_broker_dto"
	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/ledger-service/core/services"
	"transit-ledger/internal/mylogger"

	"github.com/rabbitmq/amqp091-go"
)

func newLedger() *services.LedgerService {
	return services.NewLedgerService(context.Background(), mylogger.Discard(), nil, nil, nil, services.LedgerOptions{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) },
		Rand:     func() float64 { return 1 },
	})
}

func delivery(t *testing.T, routingKey string, cmd messagebrokerdto.Command) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return amqp091.Delivery{RoutingKey: routingKey, Body: body, CorrelationId: "corr-1"}
}

func TestHandleDrivesTripLifecycle(t *testing.T) {
	ledger := newLedger()
	c := New(context.Background(), mylogger.Discard(), nil, ledger)
	p, err := ledger.LoginPassenger("Zed")
	if err != nil {
		t.Fatalf("LoginPassenger: %v", err)
	}

	// type taken from the routing key
	if err := c.Handle(delivery(t, "ledger.command.top_up", messagebrokerdto.Command{PassengerId: p.ID, Amount: 5000})); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if err := c.Handle(delivery(t, "ledger.command.place", messagebrokerdto.Command{Type: "PLACE_TRIP", PassengerId: p.ID, Route: "Central Loop"})); err != nil {
		t.Fatalf("place: %v", err)
	}
	trips := ledger.Trips(model.TripPlaced)
	if len(trips) != 1 {
		t.Fatalf("placed trips = %d; want 1", len(trips))
	}
	tripId := trips[0].ID

	for _, cmd := range []messagebrokerdto.Command{
		{Type: "assign_trip", TripId: tripId, VehicleId: "veh-2"},
		{Type: "START_TRIP", TripId: tripId},
		{Type: "END_TRIP", TripId: tripId},
		{Type: "SETTLE"},
	} {
		if err := c.Handle(delivery(t, "ledger.command.x", cmd)); err != nil {
			t.Fatalf("%s: %v", cmd.Type, err)
		}
	}

	trip, err := ledger.Trip(tripId)
	if err != nil {
		t.Fatalf("Trip: %v", err)
	}
	if trip.Status != model.TripCompleted || trip.VehicleID != "veh-2" {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if n := len(ledger.Settlements()); n != 1 {
		t.Fatalf("settlements = %d; want 1", n)
	}
}

func TestHandleRejectsBadCommands(t *testing.T) {
	c := New(context.Background(), mylogger.Discard(), nil, newLedger())

	err := c.Handle(amqp091.Delivery{RoutingKey: "ledger.command.top_up", Body: []byte("{")})
	if !errors.Is(err, myerrors.ErrBadPayload) || !isMalformed(err) {
		t.Fatalf("malformed body error = %v", err)
	}

	err = c.Handle(delivery(t, "ledger.command.fly", messagebrokerdto.Command{}))
	if !errors.Is(err, myerrors.ErrUnknownCommand) || !services.IsValidationError(err) {
		t.Fatalf("unknown command error = %v", err)
	}

	err = c.Handle(delivery(t, "ledger.command.top_up", messagebrokerdto.Command{PassengerId: "P_1"}))
	if !errors.Is(err, myerrors.ErrInvalidAmount) {
		t.Fatalf("zero amount error = %v", err)
	}
}

func TestTypeFromRoutingKey(t *testing.T) {
	cases := map[string]string{
		"ledger.command.top_up":      "TOP_UP",
		"ledger.command.cancel_trip": "CANCEL_TRIP",
		"nodots":                     "",
	}
	for key, want := range cases {
		if got := typeFromRoutingKey(key); got != want {
			t.Errorf("%q -> %q; want %q", key, got, want)
		}
	}
}

// flakyBroker hands out one subscription per ConsumeCommands call and fails
// the calls listed in down.
type flakyBroker struct {
	mu    sync.Mutex
	subs  []chan amqp091.Delivery
	down  map[int]bool
	calls int
}

func (b *flakyBroker) ConsumeCommands(ctx context.Context, queue, consumer string) (<-chan amqp091.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call := b.calls
	b.calls++
	if b.down[call] {
		return nil, myerrors.ErrBrokerConnClose
	}
	ch := make(chan amqp091.Delivery, 1)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *flakyBroker) subscriptions() []chan amqp091.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chan amqp091.Delivery(nil), b.subs...)
}

func (b *flakyBroker) PublishEvent(ctx context.Context, ev *model.Event) error { return nil }
func (b *flakyBroker) IsAlive() bool                                            { return true }
func (b *flakyBroker) Close() error                                             { return nil }

var _ ports.ILedgerBroker = (*flakyBroker)(nil)

func TestConsumerResubscribesAfterChannelCloses(t *testing.T) {
	prev := resubscribeInterval
	resubscribeInterval = 10 * time.Millisecond
	t.Cleanup(func() { resubscribeInterval = prev })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ledger := newLedger()
	p, err := ledger.LoginPassenger("Ama")
	if err != nil {
		t.Fatalf("LoginPassenger: %v", err)
	}

	// second call fails as if the connection were still down
	broker := &flakyBroker{down: map[int]bool{1: true}}
	c := New(ctx, mylogger.Discard(), broker, ledger)
	if err := c.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(broker.subscriptions()[0])

	deadline := time.Now().Add(2 * time.Second)
	for len(broker.subscriptions()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("consumer did not resubscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.subscriptions()[1] <- delivery(t, "ledger.command.top_up", messagebrokerdto.Command{PassengerId: p.ID, Amount: 1000})
	for len(ledger.Events(model.EventProcessed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("command on the new subscription was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
