package ports

import (
	"context"

	"transit-ledger/internal/ledger-service/core/domain/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	LedgerExchange  = "ledger_topic"
	CommandQueue    = "ledger_commands"
	CommandBinding  = "ledger.command.*"
	EventRoutingFmt = "ledger.event.%s.%s"
)

type ILedgerBroker interface {
	Close() error
	IsAlive() bool
	PublishEvent(ctx context.Context, ev *model.Event) error
	ConsumeCommands(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error)
}
