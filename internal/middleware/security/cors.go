package security

import (
	"net/http"
	"strings"
)

// CORS answers cross-origin requests from an allow-list of origins. A "*"
// entry allows any origin. With an empty list the middleware is a no-op and
// browsers fall back to same-origin.
type CORS struct {
	allowAll bool
	origins  map[string]struct{}
}

func NewCORS(allowedOrigins []string) *CORS {
	c := &CORS{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			c.allowAll = true
			continue
		}
		c.origins[o] = struct{}{}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !c.allowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
