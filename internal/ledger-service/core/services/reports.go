package services

import (
	"fmt"
	"sort"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/domain/model"
	"transit-ledger/internal/ledger-service/core/myerrors"
)

// ======================= Queries =======================
// Every query returns copies; callers never see the live state.

func (ls *LedgerService) PassengerDetails(passengerId string) (dto.PassengerDetailsDto, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	p := ls.state.Passenger(passengerId)
	if p == nil {
		return dto.PassengerDetailsDto{}, fmt.Errorf("passenger %s: %w", passengerId, myerrors.ErrNotFound)
	}
	cp := *p
	res := dto.PassengerDetailsDto{Passenger: &cp, Trips: []*model.Trip{}, TopUps: []*model.TopUpRecord{}}
	for _, t := range ls.state.Trips {
		if t.PassengerID == passengerId {
			tc := *t
			res.Trips = append(res.Trips, &tc)
		}
	}
	for _, tu := range ls.state.TopUps {
		if tu.PassengerID == passengerId {
			tc := *tu
			res.TopUps = append(res.TopUps, &tc)
		}
	}
	return res, nil
}

func (ls *LedgerService) Trip(tripId string) (*model.Trip, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	t := ls.state.Trip(tripId)
	if t == nil {
		return nil, fmt.Errorf("trip %s: %w", tripId, myerrors.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// Trips filters by status; an empty status returns every trip.
func (ls *LedgerService) Trips(status model.TripStatus) []*model.Trip {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := []*model.Trip{}
	for _, t := range ls.state.Trips {
		if status == "" || t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (ls *LedgerService) Vehicles() []*model.Vehicle {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := make([]*model.Vehicle, 0, len(ls.state.Vehicles))
	for _, v := range ls.state.Vehicles {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

func (ls *LedgerService) ActiveTripsForVehicle(vehicleId string) []*model.Trip {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.activeTripsForVehicle(vehicleId)
}

func (ls *LedgerService) activeTripsForVehicle(vehicleId string) []*model.Trip {
	out := []*model.Trip{}
	for _, t := range ls.state.Trips {
		if t.VehicleID == vehicleId && t.Status == model.TripInProgress {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// Events filters by status; an empty status returns the whole log in arrival order.
func (ls *LedgerService) Events(status model.EventStatus) []*model.Event {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := []*model.Event{}
	for _, ev := range ls.state.Events {
		if status == "" || ev.Status == status {
			out = append(out, ev.Clone())
		}
	}
	return out
}

func (ls *LedgerService) Settlements() []*model.SettlementBatch {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := make([]*model.SettlementBatch, 0, len(ls.state.Settlements))
	for _, b := range ls.state.Settlements {
		cp := *b
		out = append(out, &cp)
	}
	return out
}

// FareEstimate quotes the route at the current hour.
func (ls *LedgerService) FareEstimate(route string) (dto.FareEstimateDto, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	r := ls.state.Route(route)
	if r == nil {
		return dto.FareEstimateDto{}, fmt.Errorf("route %q: %w", route, myerrors.ErrNotFound)
	}
	surge := SurgeMultiplier(ls.now().In(ls.loc))
	return dto.FareEstimateDto{
		Route:           r.Name,
		BaseFare:        r.BaseFare,
		SurgeMultiplier: surge,
		EstimatedFare:   EstimateFare(r, surge),
	}, nil
}

func (ls *LedgerService) Overview() dto.OverviewDto {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	s := ls.state
	res := dto.OverviewDto{
		Timestamp:     ls.now().Format(time.RFC3339),
		Offline:       s.Offline,
		PendingEvents: ls.countPending(),
		Settlements:   len(s.Settlements),
		RouteRevenue:  []dto.RouteRevenueDto{},
		ProviderStats: []dto.ProviderStatsDto{},
	}

	byRoute := map[string]*dto.RouteRevenueDto{}
	for _, r := range s.Receipts {
		res.TotalRevenue += r.Fare
		res.TotalProviderFees += r.ProviderFee
		m, ok := byRoute[r.Route]
		if !ok {
			m = &dto.RouteRevenueDto{Route: r.Route}
			byRoute[r.Route] = m
		}
		m.Revenue += r.Fare
		m.Trips++
	}
	if n := len(s.Receipts); n > 0 {
		res.AvgFare = float64(res.TotalRevenue) / float64(n)
	}
	for _, m := range byRoute {
		res.RouteRevenue = append(res.RouteRevenue, *m)
	}
	sort.Slice(res.RouteRevenue, func(i, j int) bool {
		if res.RouteRevenue[i].Revenue == res.RouteRevenue[j].Revenue {
			return res.RouteRevenue[i].Route < res.RouteRevenue[j].Route
		}
		return res.RouteRevenue[i].Revenue > res.RouteRevenue[j].Revenue
	})

	for _, t := range s.Trips {
		switch t.Status {
		case model.TripCompleted:
			res.TripsCompleted++
			if t.EndTs != nil {
				res.HourBuckets[t.EndTs.In(ls.loc).Hour()]++
			}
		case model.TripPlaced:
			res.PlacedTrips++
		}
	}

	byProvider := map[string]*dto.ProviderStatsDto{}
	for _, tu := range s.TopUps {
		if tu.Status != model.TopUpSuccess {
			continue
		}
		m, ok := byProvider[tu.Provider]
		if !ok {
			m = &dto.ProviderStatsDto{Provider: tu.Provider}
			byProvider[tu.Provider] = m
		}
		m.Count++
		m.Volume += tu.AmountOriginal
		m.Fees += tu.Fee
	}
	for _, m := range byProvider {
		res.ProviderStats = append(res.ProviderStats, *m)
	}
	sort.Slice(res.ProviderStats, func(i, j int) bool {
		if res.ProviderStats[i].Volume == res.ProviderStats[j].Volume {
			return res.ProviderStats[i].Provider < res.ProviderStats[j].Provider
		}
		return res.ProviderStats[i].Volume > res.ProviderStats[j].Volume
	})

	for _, v := range s.Vehicles {
		load := dto.VehicleLoadDto{VehicleId: v.ID, Label: v.Label, ActiveTrips: []string{}}
		for _, t := range ls.activeTripsForVehicle(v.ID) {
			load.ActiveTrips = append(load.ActiveTrips, t.ID)
		}
		res.Vehicles = append(res.Vehicles, load)
	}
	return res
}
