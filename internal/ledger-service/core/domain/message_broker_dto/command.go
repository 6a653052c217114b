package messagebrokerdto

// Command is what external dispatchers publish on ledger.command.*.
type Command struct {
	Type          string `json:"type"`
	PassengerId   string `json:"passenger_id,omitempty"`
	TripId        string `json:"trip_id,omitempty"`
	VehicleId     string `json:"vehicle_id,omitempty"`
	Route         string `json:"route,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Provider      string `json:"provider,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
