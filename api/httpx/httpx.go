// Package httpx holds the helpers shared by the API handlers: JSON
// responses, error mapping and the acting-user middleware.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/model"
)

// UserHeader carries the authenticated user ID set by the upstream gateway.
const UserHeader = "X-User-ID"

type userKey struct{}

// WithUser rejects requests without a valid UserHeader and stores the user
// ID in the request context.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
		if err != nil || id <= 0 {
			Detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

// UserID returns the user stored by WithUser.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Detail writes {"detail": detail}. detail is a string or a list of strings.
func Detail(w http.ResponseWriter, status int, detail any) {
	JSON(w, status, map[string]any{"detail": detail})
}

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Error maps err to a status code and writes it as a detail response.
func Error(w http.ResponseWriter, err error) {
	Detail(w, Status(err), err.Error())
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrOutOfRange), errors.Is(err, model.ErrInvalid), errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrEnqueue):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PathInt parses the named path value as an int64.
func PathInt(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return v, err == nil
}
