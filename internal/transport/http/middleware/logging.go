package httpmw

import (
	"log/slog"
	"net/http"
	"time"

	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

// Logging emits one slog line per request: method, path, status, duration and
// the chi request id. The writer wrapper keeps Hijacker intact so the
// websocket upgrade on /ws still works behind it.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middlewareChi.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Info("http request",
			"req_id", middlewareChi.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
		)
	})
}
