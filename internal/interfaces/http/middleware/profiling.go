package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling tags each request with Pyroscope labels (method, route and the
// resource the route belongs to) so profiles can be split per endpoint.
// Requests to skipPaths are not labelled.
func Profiling(enabled bool, skipPaths ...string) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}
	return func(c *gin.Context) {
		if slices.Contains(skipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		route := c.FullPath()
		labels := telemetry.HTTPRequestLabels(resourceOf(route), route, c.Request.Method)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceOf returns the first static segment of a route after the API
// prefix: "/api/v1/invoices/:id/remaining" belongs to "invoices".
func resourceOf(route string) string {
	for seg := range strings.SplitSeq(route, "/") {
		switch {
		case seg == "", seg == "api", strings.HasPrefix(seg, ":"), isAPIVersion(seg):
			continue
		}
		return seg
	}
	return ""
}

func isAPIVersion(seg string) bool {
	rest, ok := strings.CutPrefix(strings.ToLower(seg), "v")
	return ok && rest != "" && strings.Trim(rest, "0123456789") == ""
}
