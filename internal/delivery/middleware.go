package delivery

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

type ctxKey int

const (
	ctxKeyClientIP ctxKey = iota
	ctxKeyUserAgent
)

const userAgentMax = 500

// ClientInfoMiddleware кладёт IP и user agent клиента в контекст запроса.
func ClientInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ctxKeyClientIP, clientIP(r))
		ctx = context.WithValue(ctx, ctxKeyUserAgent, userAgent(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxKeyClientIP).(string); ok {
		return ip
	}
	return clientIP(r)
}

func UserAgent(r *http.Request) string {
	if ua, ok := r.Context().Value(ctxKeyUserAgent).(string); ok {
		return ua
	}
	return userAgent(r)
}

// первый адрес из X-Forwarded-For, иначе RemoteAddr без порта
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			xff = xff[:idx]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func userAgent(r *http.Request) string {
	ua := r.UserAgent()
	if len(ua) > userAgentMax {
		ua = ua[:userAgentMax]
	}
	return ua
}

// RateLimitMiddleware — лимит запросов в час на клиентский IP, 429 в JSON.
func RateLimitMiddleware(perHour int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perHour,
		time.Hour,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		}),
	)
}
