package api

import (
	"net/http"
	"strings"
)

// quoteETag formats a content hash as a strong entity tag.
func quoteETag(hash string) string {
	return `"` + hash + `"`
}

// etagMatches reports whether If-None-Match on r names hash. Weak
// validators compare by opaque tag, as for GET.
func etagMatches(r *http.Request, hash string) bool {
	header := r.Header.Get("If-None-Match")
	if header == "" || hash == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == hash {
			return true
		}
	}
	return false
}

// writeCacheable sets the ETag header and answers 304 when the client
// already holds hash. It reports whether the response is finished.
func writeCacheable(w http.ResponseWriter, r *http.Request, hash string) bool {
	w.Header().Set("ETag", quoteETag(hash))
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r, hash) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
