package bm

import (
	"testing"

	"transit-ledger/internal/ledger-service/core/domain/model"
)

func TestRoutingKey(t *testing.T) {
	cases := []struct {
		ev   model.Event
		want string
	}{
		{model.Event{Type: model.EventTopUp, Status: model.EventProcessed}, "ledger.event.top_up.processed"},
		{model.Event{Type: model.EventEndTrip, Status: model.EventPending}, "ledger.event.end_trip.pending"},
	}
	for _, c := range cases {
		if got := RoutingKey(&c.ev); got != c.want {
			t.Errorf("RoutingKey(%s/%s) = %q; want %q", c.ev.Type, c.ev.Status, got, c.want)
		}
	}
}
