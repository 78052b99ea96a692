package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

const corsMaxAge = 10 * 60

// CORS allows browser clients from origins to call the auth API. A "*"
// entry allows any origin; credentials travel in the Authorization header,
// never in cookies.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(corsOptions(origins)).Handler
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: normalizeOrigins(origins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{"Retry-After", requestIDHeader},
		MaxAge:         corsMaxAge,
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "" || slices.Contains(out, o) {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
