package handle

import (
	"encoding/json"
	"net/http"

	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

type AuthHandler struct {
	authService ports.IAuthService
	log         mylogger.Logger
}

func NewAuthHandler(as ports.IAuthService, log mylogger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: as,
		log:         log,
	}
}

func (ah *AuthHandler) PassengerLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.PassengerLoginRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := ah.authService.PassengerToken(req.Name)
		if err != nil {
			JsonError(w, statusFor(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (ah *AuthHandler) OperatorLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.OperatorLoginRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := ah.authService.OperatorToken(req.Name, req.Password)
		if err != nil {
			JsonError(w, statusFor(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}
