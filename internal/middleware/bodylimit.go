package middleware

import (
	"net/http"
)

// maxBodySize caps REST request bodies. WebSocket frames have their own
// limit on the channel.
const maxBodySize = 1 << 20

// BodyLimit rejects oversized request bodies up front and caps the
// reader for the rest, so a streaming body cannot grow past the limit
// either.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBodySize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
