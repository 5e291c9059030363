package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"bus-tracker/internal/tracking-service/core/domain/model"

	"github.com/goccy/go-json"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errBadRequest)...)
}

// errorCode extends model.ErrorCode with the transport-level bad request.
func errorCode(err error) string {
	if errors.Is(err, errBadRequest) {
		return model.CodeBadRequest
	}
	return model.ErrorCode(err)
}

func statusFor(err error) int {
	switch errorCode(err) {
	case model.CodeAuthorization:
		return http.StatusForbidden
	case model.CodeNotTracking, model.CodeInvalidStateTransition:
		return http.StatusConflict
	case model.CodeInvalidCoordinate, model.CodeBadRequest:
		return http.StatusBadRequest
	case model.CodeVehicleNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// jsonResponse writes the given data as a JSON-encoded HTTP response.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes err with the status and code its kind maps to.
func jsonError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": msg,
		"code":  errorCode(err),
	})
}
