package logger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// UserIDFunc extracts the acting user for log lines; zero means anonymous.
type UserIDFunc func(r *http.Request) int64

// HTTPMiddleware attaches a request-scoped logger to the context, logs one line per request
// and turns panics into a 500 response.
func HTTPMiddleware(base zerolog.Logger, userID UserIDFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			r = r.WithContext(reqLogger.WithContext(r.Context()))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					reqLogger.Error().
						Str("panic", fmt.Sprintf("%v", p)).
						Int64("user_id", userID(r)).
						Msg("request panicked")
					if !rec.wroteHeader {
						rec.Header().Set("Content-Type", "application/json")
						rec.WriteHeader(http.StatusInternalServerError)
						_ = json.NewEncoder(rec).Encode(map[string]string{
							"error": "internal server error",
							"code":  "internal_error",
						})
					}
					return
				}

				event := reqLogger.Info()
				if rec.status >= http.StatusInternalServerError {
					event = reqLogger.Error()
				} else if rec.status >= http.StatusBadRequest {
					event = reqLogger.Warn()
				}
				event.
					Int64("user_id", userID(r)).
					Int("status", rec.status).
					Dur("duration", time.Since(start)).
					Msg("request completed")
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
