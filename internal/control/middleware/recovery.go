// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuGH/timeshift/internal/control/http/problem"
	"github.com/ManuGH/timeshift/internal/log"
)

var httpPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "timeshift_http_panics_total",
	Help: "Handler panics turned into 500 responses",
}, []string{"path"})

// Recoverer answers a handler panic with a 500 problem. http.ErrAbortHandler
// is re-raised so net/http can drop the connection quietly.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			path := routePattern(r)
			httpPanicsTotal.WithLabelValues(path).Inc()
			logger := log.WithComponentFromContext(r.Context(), "http")
			logger.Error().
				Str(log.FieldEvent, "http.panic").
				Str("method", r.Method).
				Str("route", path).
				Str("url", strings.ToValidUTF8(r.URL.Path, "?")).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL", "an unexpected error occurred", nil)
		}()

		next.ServeHTTP(w, r)
	})
}
