package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 10 * time.Second
	egressSize   = 16
)

type Client struct {
	ctx         context.Context
	cancel      context.CancelFunc
	conn        *websocket.Conn
	dis         *Dispatcher
	egress      chan websocketdto.Event
	passengerId string

	authed   atomic.Bool
	authOnce sync.Once
	authDone chan struct{}
}

func NewClient(ctx context.Context, conn *websocket.Conn, dis *Dispatcher, passengerId string) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ctx:         ctx,
		cancel:      cancel,
		conn:        conn,
		dis:         dis,
		egress:      make(chan websocketdto.Event, egressSize),
		passengerId: passengerId,
		authDone:    make(chan struct{}),
	}
}

func (c *Client) Authenticated() bool {
	return c.authed.Load()
}

func (c *Client) markAuthenticated() {
	c.authOnce.Do(func() {
		c.authed.Store(true)
		close(c.authDone)
	})
}

// send queues a message without blocking the read loop.
func (c *Client) send(e websocketdto.Event) {
	select {
	case c.egress <- e:
	default:
	}
}

func (c *Client) ReadMessage() {
	defer c.dis.RemoveClient(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// loop forever
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.dis.log.Action("wsRead").Error("unexpected close", err, "passenger-id", c.passengerId)
			}
			return
		}

		var req websocketdto.Event
		if err := json.Unmarshal(payload, &req); err != nil {
			c.send(errorEvent(err))
			continue
		}
		if err := c.dis.routeEvent(c, req); err != nil {
			c.send(errorEvent(err))
		}
	}
}

func (c *Client) WriteMessage() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case event := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.dis.log.Action("wsWrite").Error("cannot write message", err, "passenger-id", c.passengerId)
				c.dis.RemoveClient(c)
				return
			}
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.dis.RemoveClient(c)
				return
			}
		}
	}
}

func (c *Client) closeWith(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
