package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
	"transit-ledger/internal/mylogger"

	"github.com/gorilla/websocket"
)

// authTimeout is how long a fresh connection may stay unauthenticated.
var authTimeout = 5 * time.Second

var ErrUnsupportedEvent = errors.New("unsupported event type")

// ================================================================================================== //
// websocketUpgrader is used to upgrade incomming HTTP requests into a persitent websocket connection //
// ================================================================================================== //
var websocketUpgrader = websocket.Upgrader{
	// the demo front end is served from another origin; the token is the gate
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientList is a map used to help manage a map of clients
type ClientList map[*Client]bool

type Dispatcher struct {
	clients ClientList
	sync.RWMutex
	log      mylogger.Logger
	ctx      context.Context
	handlers map[string]EventHandle
}

func NewDispatcher(ctx context.Context, log mylogger.Logger, eh *EventHandler) *Dispatcher {
	d := &Dispatcher{
		clients:  make(ClientList),
		log:      log,
		ctx:      ctx,
		handlers: make(map[string]EventHandle),
	}
	d.handlers[websocketdto.TypeAuth] = eh.AuthHandler
	return d
}

func (d *Dispatcher) WsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := d.log.Action("wsHandler")
		passengerId := r.PathValue("passenger_id")

		if passengerId == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		conn, err := websocketUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("cannot upgrade", err)
			return
		}

		client := NewClient(d.ctx, conn, d, passengerId)
		d.AddClient(client)
		go client.ReadMessage()
		go client.WriteMessage()
		go d.awaitAuth(client)

		log.Debug("websocket connected", "passenger-id", passengerId)
	}
}

// awaitAuth drops the connection when no valid auth message arrives in time.
func (d *Dispatcher) awaitAuth(c *Client) {
	t := time.NewTimer(authTimeout)
	defer t.Stop()

	select {
	case <-c.authDone:
	case <-c.ctx.Done():
	case <-t.C:
		d.log.Action("wsAuthTimeout").Warn("websocket not authenticated in time", "passenger-id", c.passengerId)
		c.closeWith(websocket.ClosePolicyViolation, "authentication timeout")
		d.RemoveClient(c)
	}
}

// WriteToUser pushes msg to every authenticated connection of the passenger.
// Slow clients lose messages instead of blocking the ledger.
func (d *Dispatcher) WriteToUser(passengerId string, msg websocketdto.Event) {
	d.RLock()
	defer d.RUnlock()

	for c := range d.clients {
		if c.passengerId != passengerId || !c.Authenticated() {
			continue
		}
		select {
		case c.egress <- msg:
		default:
			d.log.Action("WriteToUser").Warn("client buffer full, message dropped", "passenger-id", passengerId, "type", msg.Type)
		}
	}
}

func (d *Dispatcher) AddClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	d.clients[client] = true
}

func (d *Dispatcher) RemoveClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	if _, ok := d.clients[client]; ok {
		delete(d.clients, client)
		client.cancel()
		client.conn.Close()
	}
}

// Close disconnects every client.
func (d *Dispatcher) Close() {
	d.Lock()
	defer d.Unlock()

	for c := range d.clients {
		c.cancel()
		c.conn.Close()
		delete(d.clients, c)
	}
}

func (d *Dispatcher) routeEvent(c *Client, e websocketdto.Event) error {
	handler, ok := d.handlers[e.Type]
	if !ok {
		return ErrUnsupportedEvent
	}
	return handler(c, e)
}

func errorEvent(err error) websocketdto.Event {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return websocketdto.Event{Type: websocketdto.TypeError, Data: data}
}
