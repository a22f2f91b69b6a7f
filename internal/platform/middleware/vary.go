package middleware

import (
	"net/http"
	"strings"
)

// Vary adds the given request headers to the Vary response header, skipping
// any value already present. With no arguments it adds Accept, since every
// response body is negotiated between JSON and CBOR.
func Vary(headers ...string) func(http.Handler) http.Handler {
	if len(headers) == 0 {
		headers = []string{"Accept"}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			AddVary(w.Header(), headers...)
			next.ServeHTTP(w, r)
		})
	}
}

// AddVary appends values to the Vary header unless they are already listed.
// Comparison is case-insensitive and understands comma-joined values.
func AddVary(h http.Header, values ...string) {
	for _, v := range values {
		if !hasVary(h, v) {
			h.Add("Vary", v)
		}
	}
}

func hasVary(h http.Header, value string) bool {
	for _, line := range h.Values("Vary") {
		for part := range strings.SplitSeq(line, ",") {
			part = strings.TrimSpace(part)
			if part == "*" || strings.EqualFold(part, value) {
				return true
			}
		}
	}
	return false
}
