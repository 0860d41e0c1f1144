// Package envelope implements the {payload | error} convention used by every network
// boundary of the storefront: handlers write it, the client reads it back into a Result.
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"flipzone/apperr"
)

// Message is the payload of mutation endpoints
type Message struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type successBody struct {
	Data interface{} `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Body is the decoded form of either shape.
type Body struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// JSON writes a success envelope. A nil slice payload should be passed as an empty slice
// so the client sees [] rather than null.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	write(w, status, successBody{Data: payload})
}

// Error writes a failure envelope for err.
func Error(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		log.WithField("component", "envelope").WithError(err).Error("request failed")
	}
	write(w, status, errorBody{Error: apperr.MessageOf(err), Code: string(kind)})
}

// StatusFor maps an error kind to an HTTP status code
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.StorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindFor is the inverse of StatusFor for clients that only see a status code.
func KindFor(status int) apperr.Kind {
	switch status {
	case http.StatusUnauthorized:
		return apperr.Unauthenticated
	case http.StatusForbidden:
		return apperr.Forbidden
	case http.StatusNotFound:
		return apperr.NotFound
	case http.StatusBadRequest:
		return apperr.Validation
	case http.StatusConflict:
		return apperr.Conflict
	case http.StatusTooManyRequests:
		return apperr.RateLimited
	case http.StatusServiceUnavailable:
		return apperr.StorageUnavailable
	default:
		return apperr.Unknown
	}
}

func write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithField("component", "envelope").WithError(err).Warn("failed to encode response")
	}
}

// Decode parses an envelope body. It fails when the body is not JSON or carries
// neither data nor error.
func Decode(raw []byte) (Body, error) {
	var b Body
	if err := json.Unmarshal(raw, &b); err != nil {
		return Body{}, err
	}
	if b.Error == "" && len(b.Data) == 0 {
		return Body{}, errors.New("envelope has neither data nor error")
	}
	return b, nil
}
