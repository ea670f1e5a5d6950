package http

import (
	"context"
	"net/http"
	"strconv"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDHeader carries the acting user. Authentication happens in front of this service.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware reads the acting user from UserIDHeader. Requests without a valid positive
// id are rejected with 401.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
		if err != nil || userID <= 0 {
			respondError(w, r, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func getUserIDFromContext(ctx context.Context) int64 {
	if userID, ok := ctx.Value(userIDKey).(int64); ok {
		return userID
	}
	return 0
}

// UserIDFromRequest is the logger.UserIDFunc. The request logger wraps IdentityMiddleware, so it
// falls back to the header.
func UserIDFromRequest(r *http.Request) int64 {
	if id := getUserIDFromContext(r.Context()); id != 0 {
		return id
	}
	id, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
