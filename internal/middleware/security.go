package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityConfig represents security headers configuration
type SecurityConfig struct {
	HSTS                  bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	FrameOptions          string
	ContentTypeOptions    string
	ReferrerPolicy        string
	CSPDirectives         []string
	// NoStore marks every API response as uncacheable
	NoStore bool
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTS:                  true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		CSPDirectives: []string{
			"default-src 'none'",
			"frame-ancestors 'none'",
		},
		NoStore: true,
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	hsts := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}
	csp := strings.Join(config.CSPDirectives, "; ")

	return func(c *gin.Context) {
		if config.HSTS {
			c.Header("Strict-Transport-Security", hsts)
		}

		c.Header("X-Frame-Options", config.FrameOptions)
		c.Header("X-Content-Type-Options", config.ContentTypeOptions)
		c.Header("Referrer-Policy", config.ReferrerPolicy)

		if csp != "" {
			c.Header("Content-Security-Policy", csp)
		}
		if config.NoStore {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}
