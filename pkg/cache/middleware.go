package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// CacheMiddleware serves repeated GET requests from c. Only 200 JSON bodies
// are stored. The key is the request URI plus the values of the vary headers,
// so callers with different roles never share an entry. Responses carry
// X-Cache: HIT or MISS.
func CacheMiddleware(c *LRUCache, vary ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r, vary)
			if body, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			gen := c.Generation()
			w.Header().Set("X-Cache", "MISS")
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			var buf bytes.Buffer
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			if ww.Status() == http.StatusOK && isJSON(ww.Header().Get("Content-Type")) {
				c.SetIfGeneration(key, buf.Bytes(), gen)
			}
		})
	}
}

func requestKey(r *http.Request, vary []string) string {
	var b strings.Builder
	b.WriteString(r.URL.RequestURI())
	for _, h := range vary {
		b.WriteString("|")
		b.WriteString(h)
		b.WriteString("=")
		b.WriteString(r.Header.Get(h))
	}
	return b.String()
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}
