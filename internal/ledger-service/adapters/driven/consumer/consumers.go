package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/model"
	messagebrokerdto "transit-ledger/internal/ledger-service/core/domain/message_broker_dto"
	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/ledger-service/core/services"
	"transit-ledger/internal/mylogger"

	"github.com/rabbitmq/amqp091-go"
)

const consumerName = "ledger-service"

// resubscribeInterval paces new ConsumeCommands attempts after the delivery
// channel closes; the broker reconnects on the same interval.
var resubscribeInterval = 10 * time.Second

// Commands turns messages published on ledger.command.* into ledger
// commands, so dispatchers outside the HTTP API can drive the simulator.
type Commands struct {
	ctx    context.Context
	mylog  mylogger.Logger
	broker ports.ILedgerBroker
	ledger ports.ILedgerService
}

func New(ctx context.Context, log mylogger.Logger, broker ports.ILedgerBroker, ledger ports.ILedgerService) *Commands {
	return &Commands{
		ctx:    ctx,
		mylog:  log,
		broker: broker,
		ledger: ledger,
	}
}

func (c *Commands) Run() error {
	ch, err := c.broker.ConsumeCommands(c.ctx, ports.CommandQueue, consumerName)
	if err != nil {
		return err
	}
	go c.work(c.ctx, ch, c.Handle)
	return nil
}

func (c *Commands) work(
	ctx context.Context,
	ch <-chan amqp091.Delivery,
	Do func(msg amqp091.Delivery) error,
) {
	log := c.mylog.Action("consume_commands")
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				log.Warn("command channel closed, resubscribing")
				if ch = c.resubscribe(ctx); ch == nil {
					return
				}
				continue
			}

			if err := Do(msg); err != nil {
				log.Error("command rejected", err, "routing-key", msg.RoutingKey, "correlation-id", msg.CorrelationId)
				// malformed commands would fail again, so they are dropped
				msg.Nack(false, !services.IsValidationError(err) && !isMalformed(err))
				continue
			}
			msg.Ack(false)
		case <-ctx.Done():
			return
		}
	}
}

// resubscribe retries ConsumeCommands until it succeeds or ctx is done.
// A closed broker connection makes ConsumeCommands start the reconnect.
func (c *Commands) resubscribe(ctx context.Context) <-chan amqp091.Delivery {
	log := c.mylog.Action("resubscribe_commands")
	t := time.NewTicker(resubscribeInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			ch, err := c.broker.ConsumeCommands(ctx, ports.CommandQueue, consumerName)
			if err != nil {
				log.Error("cannot resubscribe to commands", err)
				continue
			}
			log.Info("command consumer resubscribed")
			return ch
		case <-ctx.Done():
			return nil
		}
	}
}

// Handle decodes a delivery and executes it.
func (c *Commands) Handle(msg amqp091.Delivery) error {
	cmd := messagebrokerdto.Command{}
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		return fmt.Errorf("%w: %v", myerrors.ErrBadPayload, err)
	}
	if cmd.Type == "" {
		cmd.Type = typeFromRoutingKey(msg.RoutingKey)
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = msg.CorrelationId
	}

	ev, err := Execute(c.ledger, cmd)
	if err != nil {
		return err
	}
	c.mylog.Action("command").Info("command queued",
		"type", ev.Type,
		"event-id", ev.ID,
		"status", ev.Status,
		"correlation-id", cmd.CorrelationID,
	)
	return nil
}

// Execute maps a command onto the ledger service.
func Execute(ledger ports.ILedgerService, cmd messagebrokerdto.Command) (*model.Event, error) {
	switch model.EventType(strings.ToUpper(cmd.Type)) {
	case model.EventTopUp:
		return ledger.TopUp(cmd.PassengerId, cmd.Amount, cmd.Provider)
	case model.EventPlaceTrip:
		return ledger.PlaceTrip(cmd.PassengerId, cmd.Route)
	case model.EventAssignTrip:
		return ledger.AssignTrip(cmd.TripId, cmd.VehicleId)
	case model.EventStartTrip:
		return ledger.StartTrip(cmd.TripId, cmd.VehicleId)
	case model.EventEndTrip:
		return ledger.EndTrip(cmd.TripId)
	case model.EventCancelTrip:
		return ledger.CancelTrip(cmd.TripId)
	case model.EventSettle:
		return ledger.Settle()
	default:
		return nil, fmt.Errorf("%w: %q", myerrors.ErrUnknownCommand, cmd.Type)
	}
}

// typeFromRoutingKey maps ledger.command.top_up to TOP_UP.
func typeFromRoutingKey(key string) string {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return ""
	}
	return strings.ToUpper(key[i+1:])
}

func isMalformed(err error) bool {
	return errors.Is(err, myerrors.ErrBadPayload)
}
