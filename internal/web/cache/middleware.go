package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// cachedResponse is the serialized form of a cached HTTP response
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Response creates a middleware that caches successful GET responses
// for ttl. Non-GET requests and non-2xx responses pass through
// uncached. Cache backend failures degrade to serving the handler
// directly.
func Response(store Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)

			if raw, err := store.Get(r.Context(), key); err == nil {
				var cached cachedResponse
				if err := json.Unmarshal(raw, &cached); err == nil {
					if cached.ContentType != "" {
						w.Header().Set("Content-Type", cached.ContentType)
					}
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(cached.Status)
					w.Write(cached.Body)
					return
				}
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			rec.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				raw, err := json.Marshal(cachedResponse{
					Status:      rec.status,
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.body.Bytes(),
				})
				if err == nil {
					// Best effort: a failed write just means a miss next time.
					store.Set(r.Context(), key, raw, ttl)
				}
			}
		})
	}
}

// requestKey builds the cache key for a request
func requestKey(r *http.Request) string {
	return r.Method + ":" + r.URL.RequestURI()
}

// recorder tees the response body so it can be stored after serving
type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rec *recorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
		rec.ResponseWriter.WriteHeader(status)
	}
}

func (rec *recorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	rec.body.Write(b)
	return rec.ResponseWriter.Write(b)
}

// Hijack implements http.Hijacker interface
func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

// Flush implements http.Flusher interface
func (rec *recorder) Flush() {
	if flusher, ok := rec.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
