package security

import (
	"mime"
	"net/http"
	"strings"
)

// DefaultMaxBodyBytes bounds JSON request bodies. Imports of a few thousand
// rows fit comfortably.
const DefaultMaxBodyBytes = 8 << 20

// JSONBody rejects write requests that are not JSON (415) and caps the body
// size. onReject writes the response; when nil a plain error is sent.
func JSONBody(maxBytes int64, onReject func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	if onReject == nil {
		onReject = func(w http.ResponseWriter, status int, msg string) { http.Error(w, msg, status) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if !acceptsBody(r.Header.Get("Content-Type")) {
					onReject(w, http.StatusUnsupportedMediaType, "content type must be application/json or text/csv")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func acceptsBody(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || mt == "text/csv" || strings.HasSuffix(mt, "+json")
}
