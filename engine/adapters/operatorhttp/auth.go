package operatorhttp

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

type ctxKey int

const subjectKey ctxKey = iota

// authMiddleware validates a bearer JWT against s.secret. With no secret
// configured, auth is disabled (local/dev use) and every request is treated
// as subject "anonymous".
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.secret) == 0 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, "anonymous")))
			return
		}
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		subject, _ := claims.GetSubject()
		if subject == "" {
			subject = "unknown"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, subject)))
	})
}

func subjectFrom(r *http.Request) string {
	if s, ok := r.Context().Value(subjectKey).(string); ok {
		return s
	}
	return "anonymous"
}

// tokenLimiter hands out one rate.Limiter per subject, so one noisy operator
// token can't starve another's calls against the same engine.
type tokenLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newTokenLimiter(r rate.Limit, burst int) *tokenLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &tokenLimiter{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (t *tokenLimiter) allow(subject string) bool {
	t.mu.Lock()
	lim, ok := t.limiters[subject]
	if !ok {
		lim = rate.NewLimiter(t.r, t.burst)
		t.limiters[subject] = lim
	}
	t.mu.Unlock()
	return lim.Allow()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(subjectFrom(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
