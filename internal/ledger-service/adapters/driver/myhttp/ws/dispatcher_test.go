package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
	"transit-ledger/internal/mylogger"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
)

const testSecret = "ws-secret"

func token(t *testing.T, userId, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func startServer(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	d := NewDispatcher(context.Background(), mylogger.Discard(), NewEventHandler(testSecret))
	mux := http.NewServeMux()
	mux.Handle("GET /ws/passengers/{passenger_id}", d.WsHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		d.Close()
		srv.Close()
	})
	return d, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, passengerId string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/passengers/"+passengerId, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAuth(t *testing.T, conn *websocket.Conn, tok string) {
	t.Helper()
	data, _ := json.Marshal(websocketdto.AuthMessage{Token: tok})
	if err := conn.WriteJSON(websocketdto.Event{Type: websocketdto.TypeAuth, Data: data}); err != nil {
		t.Fatalf("write auth: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) websocketdto.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e websocketdto.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	return e
}

func TestAuthenticatedClientReceivesLedgerEvents(t *testing.T) {
	d, base := startServer(t)
	conn := dial(t, base, "P_1")

	sendAuth(t, conn, "Bearer "+token(t, "P_1", "PASSENGER"))
	if e := read(t, conn); e.Type != websocketdto.TypeAuthOk {
		t.Fatalf("got %s %s; want auth_ok", e.Type, e.Data)
	}

	d.WriteToUser("P_2", websocketdto.Event{Type: websocketdto.TypeLedgerEvent, Data: json.RawMessage(`{"id":"other"}`)})
	d.WriteToUser("P_1", websocketdto.Event{Type: websocketdto.TypeLedgerEvent, Data: json.RawMessage(`{"id":"EV_1"}`)})

	e := read(t, conn)
	if e.Type != websocketdto.TypeLedgerEvent || string(e.Data) != `{"id":"EV_1"}` {
		t.Fatalf("got %s %s", e.Type, e.Data)
	}
}

func TestForeignTokenIsRejected(t *testing.T) {
	d, base := startServer(t)
	conn := dial(t, base, "P_1")

	sendAuth(t, conn, token(t, "P_2", "PASSENGER"))
	if e := read(t, conn); e.Type != websocketdto.TypeError {
		t.Fatalf("got %s; want error", e.Type)
	}

	// still unauthenticated: pushes are not delivered, pings go through
	d.WriteToUser("P_1", websocketdto.Event{Type: websocketdto.TypeLedgerEvent, Data: json.RawMessage(`{}`)})
	if err := conn.WriteJSON(websocketdto.Event{Type: "unknown"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := read(t, conn)
	if e.Type != websocketdto.TypeError || !strings.Contains(string(e.Data), ErrUnsupportedEvent.Error()) {
		t.Fatalf("got %s %s; want unsupported event error", e.Type, e.Data)
	}
}

func TestOperatorTokenMaySubscribe(t *testing.T) {
	_, base := startServer(t)
	conn := dial(t, base, "P_9")

	sendAuth(t, conn, token(t, "op_ops", "ADMIN"))
	if e := read(t, conn); e.Type != websocketdto.TypeAuthOk {
		t.Fatalf("got %s %s; want auth_ok", e.Type, e.Data)
	}
}

func TestUnauthenticatedConnectionIsClosed(t *testing.T) {
	prev := authTimeout
	authTimeout = 100 * time.Millisecond
	t.Cleanup(func() { authTimeout = prev })

	_, base := startServer(t)
	conn := dial(t, base, "P_1")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read error = %v; want policy violation close", err)
	}
}
