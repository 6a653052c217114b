package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"transit-ledger/internal/ledger-service/core/myerrors"
	"transit-ledger/internal/ledger-service/core/services"
)

// Headers set by the auth middleware.
const (
	HeaderUserId = "X-UserId"
	HeaderRole   = "X-Role"
)

// jsonResponse writes the given data as a JSON-encoded HTTP response.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// JsonError writes an error response as JSON with the specified HTTP status code.
func JsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

// statusFor maps service errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, myerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, myerrors.ErrForbidden), errors.Is(err, myerrors.ErrOperatorLoginDisabled):
		return http.StatusForbidden
	case errors.Is(err, myerrors.ErrBadCredentials):
		return http.StatusUnauthorized
	case services.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody tolerates an empty body for commands whose fields are all optional.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(HeaderRole) == services.RoleAdmin
}

// canActFor lets passengers act on themselves and operators on anyone.
func canActFor(r *http.Request, passengerId string) error {
	if isAdmin(r) {
		return nil
	}
	if strings.TrimSpace(passengerId) == "" || r.Header.Get(HeaderUserId) != passengerId {
		return myerrors.ErrForbidden
	}
	return nil
}
