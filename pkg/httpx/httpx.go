package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type errorBody struct {
	Kind    string             `json:"kind"`
	Message string             `json:"message"`
	Details []apperr.Shortfall `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid body", err)
	}
	return nil
}

// Error renders err using its apperr kind. Unclassified errors are logged and
// reported as internal without leaking the cause.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		log.Error("unhandled error", "err", err)
		e = apperr.New(apperr.Internal, "internal error")
	} else if StatusFor(e.Kind) == http.StatusInternalServerError {
		log.Error("internal error", "kind", e.Kind.String(), "err", err)
	}
	JSON(w, StatusFor(e.Kind), map[string]errorBody{
		"error": {Kind: e.Kind.String(), Message: e.Message, Details: e.Shortfalls},
	})
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.InsufficientStock, apperr.InvalidStateTransition, apperr.ConcurrencyConflict:
		return http.StatusConflict
	case apperr.GatewayError:
		return http.StatusBadGateway
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
