package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to make cross-origin requests.
	// Entries are exact origins or wildcard subdomains like "*.example.com".
	AllowedOrigins []string

	// AllowedMethods specifies the allowed HTTP methods.
	AllowedMethods []string

	// AllowedHeaders specifies the allowed request headers.
	AllowedHeaders []string

	// ExposedHeaders specifies which headers the browser can access.
	ExposedHeaders []string

	// AllowCredentials indicates whether credentials (cookies, auth) are
	// allowed. If true, AllowedOrigins must not contain "*".
	AllowCredentials bool

	// MaxAge is the Access-Control-Max-Age value in seconds.
	MaxAge int
}

// DefaultCORSConfig returns production-safe defaults: no origins allowed
// until configured, and the headers both auth schemes of this API use.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-API-Key",
			"X-Request-ID",
			"Accept",
			"Accept-Language",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// originAllowList is the allow list split once at middleware construction:
// exact origins get a map lookup, wildcard entries become suffix matches.
type originAllowList struct {
	exact    map[string]bool
	suffixes []string
}

func newOriginAllowList(origins []string) originAllowList {
	list := originAllowList{exact: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		origin = strings.ToLower(origin)
		if rest, ok := strings.CutPrefix(origin, "*."); ok {
			list.suffixes = append(list.suffixes, "."+rest)
			continue
		}
		list.exact[origin] = true
	}
	return list
}

// allows reports whether an Origin header value is in the allow list. A
// wildcard entry matches subdomains only, never the bare apex and never a
// domain that merely ends with the same characters.
func (l originAllowList) allows(origin string) bool {
	origin = strings.ToLower(origin)
	if l.exact[origin] {
		return true
	}

	for _, suffix := range l.suffixes {
		if !strings.HasSuffix(origin, suffix) {
			continue
		}
		head := strings.TrimSuffix(origin, suffix)
		if scheme, host, ok := strings.Cut(head, "://"); ok && scheme != "" && host != "" {
			return true
		}
	}
	return false
}

// CORS returns a middleware handling cross-origin requests, including
// preflight OPTIONS. Disallowed origins get no CORS headers at all; a
// disallowed preflight is answered 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methodsStr := strings.Join(cfg.AllowedMethods, ", ")
	headersStr := strings.Join(cfg.AllowedHeaders, ", ")
	exposedStr := strings.Join(cfg.ExposedHeaders, ", ")

	allowList := newOriginAllowList(cfg.AllowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// No Origin header means same-origin; nothing to do.
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowList.allows(origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				// The browser blocks the response without our headers.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if exposedStr != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposedStr)
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", methodsStr)
				w.Header().Set("Access-Control-Allow-Headers", headersStr)
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
