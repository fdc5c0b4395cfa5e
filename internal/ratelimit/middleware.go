package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/timecode/internal/errors"
	"github.com/zsiec/timecode/internal/logger"
	"github.com/zsiec/timecode/internal/metrics"
)

// Middleware rejects requests over the limit with 429. Limiter failures are
// logged and the request is let through.
func Middleware(l Limiter, eh *errors.ErrorHandler, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)

			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"backend": l.Backend(),
					"client":  key,
				}).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !ok {
				metrics.IncrementRateLimited(l.Backend())
				w.Header().Set("Retry-After", "1")
				eh.HandleError(w, r, errors.NewRateLimitError("Too many requests").
					WithDetails(map[string]interface{}{"client": key}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller: the first forwarded address if present,
// otherwise the connection's host without port.
func ClientKey(r *http.Request) string {
	ip := logger.RemoteIP(r)
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	ip = strings.TrimSpace(ip)

	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
