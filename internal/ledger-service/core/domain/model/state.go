package model

import (
	"strings"

	"github.com/google/uuid"
)

// State is everything the simulator owns. It is what gets persisted as a
// snapshot. Collections are kept in arrival order.
type State struct {
	Passengers  []*Passenger       `json:"passengers"`
	Vehicles    []*Vehicle         `json:"vehicles"`
	Routes      []*Route           `json:"routes"`
	Trips       []*Trip            `json:"trips"`
	Receipts    []*Receipt         `json:"receipts"`
	TopUps      []*TopUpRecord     `json:"top_ups"`
	Settlements []*SettlementBatch `json:"settlements"`
	Events      []*Event           `json:"events"`
	Offline     bool               `json:"offline"`
	// SettledReceipts counts receipts already folded into a batch.
	SettledReceipts int `json:"settled_receipts"`
}

func DefaultVehicles() []*Vehicle {
	return []*Vehicle{
		{ID: "veh-1", Label: "Bus 1"},
		{ID: "veh-2", Label: "Mini 2"},
		{ID: "veh-3", Label: "Taxi 3"},
	}
}

func DefaultRoutes() []*Route {
	return []*Route{
		{Name: "Central Loop", BaseFare: 1500, DistanceKm: 5.2},
		{Name: "Airport Express", BaseFare: 8000, DistanceKm: 42},
		{Name: "Kampala – Suburb", BaseFare: 2500, DistanceKm: 12.5},
		{Name: "Late Night", BaseFare: 1800, DistanceKm: 6.3},
	}
}

// NewState returns an empty ledger with the seeded fleet and route table.
func NewState() *State {
	return &State{
		Vehicles: DefaultVehicles(),
		Routes:   DefaultRoutes(),
	}
}

func (s *State) Passenger(id string) *Passenger {
	for _, p := range s.Passengers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *State) PassengerByName(name string) *Passenger {
	for _, p := range s.Passengers {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (s *State) Vehicle(id string) *Vehicle {
	for _, v := range s.Vehicles {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (s *State) Route(name string) *Route {
	for _, r := range s.Routes {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (s *State) Trip(id string) *Trip {
	for _, t := range s.Trips {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// OpenTrip returns the passenger's placed or in-progress trip, if any.
func (s *State) OpenTrip(passengerID string) *Trip {
	for _, t := range s.Trips {
		if t.PassengerID == passengerID && t.Status.Open() {
			return t
		}
	}
	return nil
}

// Clone deep-copies the state so it can be persisted or serialised outside the lock.
func (s *State) Clone() *State {
	c := &State{
		Offline:         s.Offline,
		SettledReceipts: s.SettledReceipts,
	}
	for _, p := range s.Passengers {
		cp := *p
		c.Passengers = append(c.Passengers, &cp)
	}
	for _, v := range s.Vehicles {
		cp := *v
		c.Vehicles = append(c.Vehicles, &cp)
	}
	for _, r := range s.Routes {
		cp := *r
		c.Routes = append(c.Routes, &cp)
	}
	for _, t := range s.Trips {
		c.Trips = append(c.Trips, t.clone())
	}
	for _, r := range s.Receipts {
		cp := *r
		c.Receipts = append(c.Receipts, &cp)
	}
	for _, tu := range s.TopUps {
		cp := *tu
		c.TopUps = append(c.TopUps, &cp)
	}
	for _, b := range s.Settlements {
		cp := *b
		c.Settlements = append(c.Settlements, &cp)
	}
	for _, e := range s.Events {
		c.Events = append(c.Events, e.Clone())
	}
	return c
}

func (t *Trip) clone() *Trip {
	cp := *t
	if t.StartTs != nil {
		ts := *t.StartTs
		cp.StartTs = &ts
	}
	if t.EndTs != nil {
		ts := *t.EndTs
		cp.EndTs = &ts
	}
	return &cp
}

func (e *Event) Clone() *Event {
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	return &cp
}

// NewID returns prefix followed by seven random characters.
func NewID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}
