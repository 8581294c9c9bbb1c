package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snigdhasv/email-delivery-service/internal/queue"
)

type contextKey string

const sessionAccountKey contextKey = "session_account_id"

// bearerToken extracts the credential from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

// sessionAuth verifies a dashboard session JWT (HS256, subject = account id)
// on internal routes. This is a separate, higher-trust credential, never the
// API key itself.
func sessionAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			accountID, err := token.Claims.GetSubject()
			if err != nil || accountID == "" {
				respondError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionAccountKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionAccountID returns the account id set by sessionAuth.
func sessionAccountID(ctx context.Context) string {
	id, _ := ctx.Value(sessionAccountKey).(string)
	return id
}

// ipRateLimit caps requests per client IP using the shared sliding-window
// limiter. It fails open when Redis is unavailable.
func ipRateLimit(limiter *queue.RateLimiter, name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := fmt.Sprintf("%s:%s", name, ip)
			if !limiter.Allow(r.Context(), key, limit, window) {
				respondError(w, http.StatusTooManyRequests, "Too many requests.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
