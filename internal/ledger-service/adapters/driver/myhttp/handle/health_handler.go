package handle

import (
	"net/http"
	"time"

	"transit-ledger/internal/ledger-service/core/ports"
)

type HealthHandler struct {
	db      ports.IDB
	broker  ports.ILedgerBroker
	ledger  ports.ILedgerService
	started time.Time
}

// NewHealthHandler accepts nil dependencies; they are reported as "disabled".
func NewHealthHandler(db ports.IDB, broker ports.ILedgerBroker, ledger ports.ILedgerService) *HealthHandler {
	return &HealthHandler{
		db:      db,
		broker:  broker,
		ledger:  ledger,
		started: time.Now(),
	}
}

func (hh *HealthHandler) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		dbStatus, brokerStatus := "disabled", "disabled"

		if hh.db != nil {
			dbStatus = "up"
			if err := hh.db.IsAlive(); err != nil {
				dbStatus = "down"
				status = "degraded"
			}
		}
		if hh.broker != nil {
			brokerStatus = "up"
			if !hh.broker.IsAlive() {
				brokerStatus = "down"
				status = "degraded"
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		jsonResponse(w, code, map[string]interface{}{
			"status":   status,
			"database": dbStatus,
			"broker":   brokerStatus,
			"offline":  hh.ledger.IsOffline(),
			"uptime":   time.Since(hh.started).Round(time.Second).String(),
		})
	}
}
