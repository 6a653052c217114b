package dto

import "transit-ledger/internal/ledger-service/core/domain/model"

// API Transfer data

type TopUpRequestDto struct {
	Amount   int64  `json:"amount"`
	Provider string `json:"provider"`
}

type PlaceTripRequestDto struct {
	PassengerId string `json:"passenger_id"`
	Route       string `json:"route"`
}

type TripCommandRequestDto struct {
	VehicleId string `json:"vehicle_id"`
}

type OfflineRequestDto struct {
	Offline *bool `json:"offline"`
}

type EventResponseDto struct {
	Event   *model.Event `json:"event"`
	Offline bool         `json:"offline"`
}

type OfflineResponseDto struct {
	Offline   bool           `json:"offline"`
	Processed []*model.Event `json:"processed"`
}

type FareEstimateDto struct {
	Route           string  `json:"route"`
	BaseFare        int64   `json:"base_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	EstimatedFare   int64   `json:"estimated_fare"`
}

type PassengerDetailsDto struct {
	Passenger *model.Passenger     `json:"passenger"`
	Trips     []*model.Trip        `json:"trips"`
	TopUps    []*model.TopUpRecord `json:"top_ups"`
}

type RouteRevenueDto struct {
	Route   string `json:"route"`
	Revenue int64  `json:"revenue"`
	Trips   int    `json:"trips"`
}

type ProviderStatsDto struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Volume   int64  `json:"volume"`
	Fees     int64  `json:"fees"`
}

type VehicleLoadDto struct {
	VehicleId   string   `json:"vehicle_id"`
	Label       string   `json:"label"`
	ActiveTrips []string `json:"active_trips"`
}

type OverviewDto struct {
	Timestamp         string             `json:"timestamp"`
	Offline           bool               `json:"offline"`
	TotalRevenue      int64              `json:"total_revenue"`
	TotalProviderFees int64              `json:"total_provider_fees"`
	TripsCompleted    int                `json:"trips_completed"`
	AvgFare           float64            `json:"avg_fare"`
	PendingEvents     int                `json:"pending_events"`
	PlacedTrips       int                `json:"placed_trips"`
	RouteRevenue      []RouteRevenueDto  `json:"route_revenue"`
	HourBuckets       [24]int            `json:"hour_buckets"`
	ProviderStats     []ProviderStatsDto `json:"provider_stats"`
	Vehicles          []VehicleLoadDto   `json:"vehicles"`
	Settlements       int                `json:"settlements"`
}
