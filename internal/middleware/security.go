// internal/middleware/security.go
//
// Security-header middleware for the ops listener.
//
// The ops endpoints only ever return JSON or Prometheus text, so the
// headers lock everything else down:
//
//   • Content-Security-Policy   –  nothing may load from these responses
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Cache-Control             –  job state must never be cached
//
// Notes
// -----
// • Headers are set before next runs; handlers may override any of them.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets the ops security headers on every response.
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
