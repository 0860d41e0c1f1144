package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"flipzone/envelope"
)

// Recover turns a panicking handler into an Unknown error envelope.
func Recover(logger *log.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID := RequestID(r)
					if requestID == "" {
						requestID = w.Header().Get(RequestIDHeader)
					}
					logger.WithFields(log.Fields{
						"request_id": requestID,
						"panic":      fmt.Sprint(rec),
						"stack":      string(debug.Stack()),
					}).Error("handler panicked")
					envelope.Error(w, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
