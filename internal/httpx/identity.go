package httpx

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strconv"
	"strings"
)

// Authentication happens upstream; the gateway forwards who the caller is.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
)

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(headerUserID))
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + headerUserID, Code: "UNAUTHENTICATED"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, uid)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get(headerRole), "admin") {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin only", Code: "FORBIDDEN"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userKey{}).(string)
	return uid
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, apperr.ErrInvalidInput)
	}
	return id, nil
}
