package dto

import "transit-ledger/internal/ledger-service/core/domain/model"

type PassengerLoginRequest struct {
	Name string `json:"name"`
}

type OperatorLoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	Role        string           `json:"role"`
	Passenger   *model.Passenger `json:"passenger,omitempty"`
}
