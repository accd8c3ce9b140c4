package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"garita/pkg/platform/httputil"
	"garita/pkg/requestcontext"
)

// slidingWindow tracks request timestamps per key. The sliding window avoids
// the burst-at-boundary problem of fixed windows.
type slidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string][]time.Time
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{
		window:  window,
		entries: make(map[string][]time.Time),
	}
}

// allow records one request for key and reports whether it fits the limit,
// along with how many requests remain and when the oldest one expires.
func (s *slidingWindow) allow(key string, limit int) (allowed bool, remaining int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.window)
	kept := s.entries[key][:0]
	for _, ts := range s.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		s.entries[key] = kept
		return false, 0, kept[0].Add(s.window)
	}

	kept = append(kept, now)
	s.entries[key] = kept
	return true, limit - len(kept), now.Add(s.window)
}

type rateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit caps requests per client within a sliding window. The key is the
// client IP placed in the context by Device; a kiosk without one falls back
// to the remote address.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	store := newSlidingWindow(window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestcontext.ClientIP(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}

			allowed, remaining, resetAt := store.allow(key, limit)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, &rateLimitExceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests from this device. Please try again later.",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
