package ws

import (
	"encoding/json"
	"fmt"

	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
	"transit-ledger/internal/ledger-service/core/services"
)

type EventHandle func(c *Client, e websocketdto.Event) error

type EventHandler struct {
	accessSecret string
}

func NewEventHandler(accessSecret string) *EventHandler {
	return &EventHandler{
		accessSecret: accessSecret,
	}
}

// AuthHandler accepts the passenger's own token or an operator token.
func (eh *EventHandler) AuthHandler(client *Client, e websocketdto.Event) error {
	var msg websocketdto.AuthMessage
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return err
	}

	claims, err := services.ParseToken(eh.accessSecret, msg.Token)
	if err != nil {
		return err
	}
	if claims.Role != services.RoleAdmin && claims.UserId != client.passengerId {
		return fmt.Errorf("token does not belong to passenger %s", client.passengerId)
	}

	client.markAuthenticated()
	data, _ := json.Marshal(map[string]string{"passenger_id": client.passengerId})
	client.send(websocketdto.Event{Type: websocketdto.TypeAuthOk, Data: data})
	return nil
}
