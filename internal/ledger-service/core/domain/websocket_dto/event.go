package websocketdto

import "encoding/json"

const (
	TypeAuth        = "auth"
	TypeAuthOk      = "auth_ok"
	TypeLedgerEvent = "ledger_event"
	TypeError       = "error"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuthMessage struct {
	Token string `json:"token"`
}
