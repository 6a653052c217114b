package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_total",
		Help: "Events that reached a final status, by type and status",
	}, []string{"type", "status"})
	pendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_pending_events",
		Help: "Events waiting for the link to come back",
	})
	autopilotCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_autopilot_commands_total",
		Help: "Commands issued by the autopilot",
	}, []string{"command"})
)
