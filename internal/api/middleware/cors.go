package middleware

import (
	"fmt"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const corsMaxAge = 12 * time.Hour

// Trace headers are accepted from browsers and exposed back to them so
// clients can correlate an evaluation with server logs.
var traceHeaders = []string{RequestIDHeader, "X-Trace-ID", "X-Span-ID"}

// CORS admits browser calls from origins. "*" (or an empty list) admits any
// origin; other origins must carry a scheme. Requests from an origin outside
// the list are refused with 403. The API takes no cookies or auth headers, so
// credentials are never allowed.
func CORS(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  append([]string{"Origin", "Accept", "Content-Type"}, traceHeaders...),
		ExposeHeaders: traceHeaders,
		MaxAge:        corsMaxAge,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	return cors.New(cfg), nil
}
