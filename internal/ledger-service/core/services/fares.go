package services

import (
	"math"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
)

const (
	PEAK_SURGE     = 1.25
	NO_SURGE       = 1.0
	MORNING_PEAK_A = 6 // inclusive hours
	MORNING_PEAK_B = 9
	EVENING_PEAK_A = 17
	EVENING_PEAK_B = 20

	TRIP_PROVIDER_FEE_RATE = 0.015
	FALLBACK_FARE          = 1000

	DEFAULT_PROVIDER = "MTN Momo"
)

type FeeModel struct {
	Percent float64
	Fixed   int64
}

var TopUpFeeModels = map[string]FeeModel{
	"MTN Momo":     {Percent: 0.01, Fixed: 50},
	"Airtel Money": {Percent: 0.008, Fixed: 30},
	"MockCard":     {Percent: 0.012, Fixed: 0},
}

// ComputeTopUpFees applies the provider's percentage plus fixed fee. Unknown
// providers fall back to DEFAULT_PROVIDER. The fee never exceeds the amount,
// so credited == amount - fee holds for every non-negative amount.
func ComputeTopUpFees(provider string, amount int64) (fee, credited int64) {
	m, ok := TopUpFeeModels[provider]
	if !ok {
		m = TopUpFeeModels[DEFAULT_PROVIDER]
	}
	fee = roundMoney(float64(amount)*m.Percent) + m.Fixed
	if fee > amount {
		fee = amount
	}
	if fee < 0 {
		fee = 0
	}
	return fee, amount - fee
}

// SurgeMultiplier returns the time-of-day factor for t's wall clock hour.
func SurgeMultiplier(t time.Time) float64 {
	h := t.Hour()
	if (h >= MORNING_PEAK_A && h <= MORNING_PEAK_B) || (h >= EVENING_PEAK_A && h <= EVENING_PEAK_B) {
		return PEAK_SURGE
	}
	return NO_SURGE
}

func EstimateFare(r *model.Route, surge float64) int64 {
	return roundMoney(float64(r.BaseFare) * surge)
}

func TripProviderFee(fare int64) int64 {
	return roundMoney(float64(fare) * TRIP_PROVIDER_FEE_RATE)
}

// roundMoney rounds half up, matching how fares are quoted to passengers.
func roundMoney(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
