package middleware

import (
	"net/http"

	"github.com/rohits-web03/meetingvault/internal/utils"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a 500 JSON body.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("panic serving request",
					zap.Any("panic", v),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", w.Header().Get(RequestIDHeader)),
					zap.Stack("stack"),
				)
				utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
					StatusCode: http.StatusInternalServerError,
					Message:    "internal server error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
