package shield

import "net/http"

// MaxFormBody caps the body size of form-encoded requests; reads past the
// limit make ParseForm fail. Other content types pass through untouched, the
// JSON endpoints enforce their own limits.
func MaxFormBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
