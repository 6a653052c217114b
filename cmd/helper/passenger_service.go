package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/domain/model"
	websocketdto "transit-ledger/internal/ledger-service/core/domain/websocket_dto"
)

type PassengerService struct {
	passengerID string
	jwtToken    string
	httpClient  *HTTPClient
	wsClient    *WebSocketClient
	logger      *Logger
	ctx         context.Context
}

func NewPassengerService(ctx context.Context, baseURL string, logger *Logger) *PassengerService {
	return &PassengerService{
		httpClient: NewHTTPClient(baseURL, logger),
		wsClient:   NewWebSocketClient(ctx, logger),
		logger:     logger,
		ctx:        ctx,
	}
}

func (p *PassengerService) Login(name string) error {
	res := dto.TokenResponse{}
	if err := p.httpClient.Do("POST", PassengerLoginPath, "", dto.PassengerLoginRequest{Name: name}, &res); err != nil {
		return err
	}
	if res.Passenger == nil {
		return fmt.Errorf("login answered without a passenger")
	}
	p.passengerID = res.Passenger.ID
	p.jwtToken = res.AccessToken
	p.logger.Info("logged in as %s (%s), wallet %d", res.Passenger.Name, p.passengerID, res.Passenger.Wallet)
	p.logger.SetPassenger(res.Passenger.Name)
	return nil
}

// ConnectWebSocket dials the notification channel and authenticates.
func (p *PassengerService) ConnectWebSocket(baseURL string) error {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + fmt.Sprintf(WSPassengerPath, p.passengerID)
	if err := p.wsClient.Connect(wsURL); err != nil {
		return err
	}

	data, _ := json.Marshal(websocketdto.AuthMessage{Token: p.jwtToken})
	time.Sleep(AuthDelay)
	return p.wsClient.SendMessage(websocketdto.Event{Type: websocketdto.TypeAuth, Data: data})
}

func (p *PassengerService) Listen() error {
	return p.wsClient.ReadMessages(func(payload []byte) error {
		var e websocketdto.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		switch e.Type {
		case websocketdto.TypeLedgerEvent:
			var ev model.Event
			if err := json.Unmarshal(e.Data, &ev); err != nil {
				return err
			}
			p.logger.Event("WS", &ev)
		default:
			p.logger.WebSocket("%s %s", e.Type, string(e.Data))
		}
		return nil
	})
}

func (p *PassengerService) TopUp(amount int64, provider string) error {
	res := dto.EventResponseDto{}
	req := dto.TopUpRequestDto{Amount: amount, Provider: provider}
	if err := p.httpClient.Do("POST", fmt.Sprintf(TopUpPath, p.passengerID), p.jwtToken, req, &res); err != nil {
		return err
	}
	p.logEvent("top-up", res)
	return nil
}

func (p *PassengerService) Quote(route string) error {
	res := dto.FareEstimateDto{}
	if err := p.httpClient.Do("GET", fmt.Sprintf(FaresPath, url.QueryEscape(route)), p.jwtToken, nil, &res); err != nil {
		return err
	}
	p.logger.Info("%s: base %d x %.2f = %d", res.Route, res.BaseFare, res.SurgeMultiplier, res.EstimatedFare)
	return nil
}

func (p *PassengerService) PlaceTrip(route string) error {
	res := dto.EventResponseDto{}
	req := dto.PlaceTripRequestDto{PassengerId: p.passengerID, Route: route}
	if err := p.httpClient.Do("POST", TripsPath, p.jwtToken, req, &res); err != nil {
		return err
	}
	p.logEvent("trip", res)
	return nil
}

func (p *PassengerService) PrintWallet() error {
	res := dto.PassengerDetailsDto{}
	if err := p.httpClient.Do("GET", fmt.Sprintf(PassengerPath, p.passengerID), p.jwtToken, nil, &res); err != nil {
		return err
	}
	p.logger.Info("wallet %d, %d trips, %d top-ups", res.Passenger.Wallet, len(res.Trips), len(res.TopUps))
	return nil
}

func (p *PassengerService) logEvent(what string, res dto.EventResponseDto) {
	if res.Event == nil {
		p.logger.Warn("%s: no event returned", what)
		return
	}
	p.logger.Event(strings.ToUpper(what), res.Event)
}

func (p *PassengerService) Close() error {
	return p.wsClient.Close()
}
