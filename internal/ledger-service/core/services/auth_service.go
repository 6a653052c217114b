package services

import (
	"fmt"
	"strings"
	"time"

	"transit-ledger/internal/config"
	"transit-ledger/internal/ledger-service/core/domain/dto"
	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	RolePassenger = "PASSENGER"
	RoleAdmin     = "ADMIN"

	HashFactor = 10
)

type AuthService struct {
	cfg    config.Appconfig
	ledger ports.ILedgerService
	mylog  mylogger.Logger
}

func NewAuthService(cfg config.Appconfig, ledger ports.ILedgerService, log mylogger.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		ledger: ledger,
		mylog:  log,
	}
}

// PassengerToken logs the passenger in by name, registering them on first
// use, and signs a passenger token.
func (as *AuthService) PassengerToken(name string) (dto.TokenResponse, error) {
	mylog := as.mylog.Action("PassengerToken")

	passenger, err := as.ledger.LoginPassenger(name)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	token, err := as.sign(passenger.ID, passenger.Name, RolePassenger)
	if err != nil {
		mylog.Error("error to create jwt token", err)
		return dto.TokenResponse{}, err
	}

	mylog.Info("passenger logged in", "passenger-id", passenger.ID)
	return dto.TokenResponse{AccessToken: token, Role: RolePassenger, Passenger: passenger}, nil
}

// OperatorToken checks password against the configured bcrypt hash.
func (as *AuthService) OperatorToken(name, password string) (dto.TokenResponse, error) {
	mylog := as.mylog.Action("OperatorToken")

	if as.cfg.OperatorPasswordHash == "" {
		return dto.TokenResponse{}, myerrors.ErrOperatorLoginDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return dto.TokenResponse{}, myerrors.ErrEmptyField
	}
	if !checkPassword([]byte(as.cfg.OperatorPasswordHash), password) {
		mylog.Warn("operator login rejected", "name", name)
		return dto.TokenResponse{}, myerrors.ErrBadCredentials
	}

	token, err := as.sign("op_"+name, name, RoleAdmin)
	if err != nil {
		mylog.Error("error to create jwt token", err)
		return dto.TokenResponse{}, err
	}
	mylog.Info("operator logged in", "name", name)
	return dto.TokenResponse{AccessToken: token, Role: RoleAdmin}, nil
}

func (as *AuthService) sign(userId, name, role string) (string, error) {
	ttl := as.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"name":    name,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(as.cfg.JwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// HashPassword produces a value suitable for OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), HashFactor)
	return string(bytes), err
}

func checkPassword(hashed []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(password)) == nil
}
