package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// NoStore marks every response uncacheable. Survey state (active runs,
// submission counts) changes per user and per minute.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// PublicCache lets shared caches keep GET responses for maxAge. It is used
// for the static template catalog.
func PublicCache(maxAge time.Duration, next http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Cache-Control", value)
			w.Header().Del("Pragma")
			w.Header().Del("Expires")
		}
		next.ServeHTTP(w, r)
	})
}
