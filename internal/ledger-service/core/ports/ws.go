package ports

import websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"

type INotifyWebsocket interface {
	WriteToUser(passengerId string, msg websocketdto.Event)
}
