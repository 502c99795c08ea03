package mw

import (
	"net/http"
)

// CORSMiddleware is wide open by default. The query API serves browser
// dashboards on other origins and exposes nothing sensitive.
type CORSMiddleware struct {
	Origins []string
	Methods []string
	Headers []string
}

func NewCORS(origins, methods, headers []string) *CORSMiddleware {
	return &CORSMiddleware{
		Origins: origins,
		Methods: methods,
		Headers: headers,
	}
}

func (c *CORSMiddleware) Handler() func(http.Handler) http.Handler {
	origins := joinOrDefault(c.Origins, "*")
	methods := joinOrDefault(c.Methods, "GET, POST, OPTIONS")
	headers := joinOrDefault(c.Headers, "Authorization, Content-Type")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origins)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Vary", "Origin")

			// preflight never reaches a handler
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinOrDefault(v []string, def string) string {
	if len(v) == 0 {
		return def
	}

	s := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] != "" {
			s += "," + v[i]
		}
	}
	return s
}
