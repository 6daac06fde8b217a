package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recovery creates a middleware that recovers from handler panics,
// logs the panic with its stack, and sends a JSON 500 response.
func Recovery(log *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered",
						zap.Any("panic", err),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.ByteString("stack", debug.Stack()))

					writeRecoveryResponse(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeRecoveryResponse sends a generic JSON error response
func writeRecoveryResponse(w http.ResponseWriter) {
	body, err := json.Marshal(map[string]string{
		"error":   "internal_server_error",
		"message": "An unexpected error occurred",
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(body)
}
