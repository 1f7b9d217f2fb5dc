package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"foresight/internal/trade"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// failureStatus maps a trade failure onto an HTTP status code.
func failureStatus(e *trade.Error) int {
	switch e.Kind {
	case trade.KindNotConnected:
		return http.StatusUnauthorized
	case trade.KindInvalidAmount, trade.KindLimitExceeded,
		trade.KindInsufficientBalance, trade.KindInvalidMarket:
		return http.StatusUnprocessableEntity
	case trade.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	case trade.KindRateLimited:
		return http.StatusTooManyRequests
	case trade.KindRejectedBySigner:
		return http.StatusForbidden
	}
	return http.StatusBadGateway
}
