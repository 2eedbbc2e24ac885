package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64 // in bytes
	MaxHeaderSize int   // in bytes
	SkipPaths     []string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20, // 1MB
		MaxHeaderSize: 1 << 14, // 16KB
	}
}

// SizeLimit middleware limits request sizes
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}

		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				httputil.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize)))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if config.MaxHeaderSize > 0 && headerSize > config.MaxHeaderSize {
			c.AbortWithStatusJSON(http.StatusRequestHeaderFieldsTooLarge,
				httputil.NewErrorResponse(fmt.Sprintf("request headers exceed %d bytes", config.MaxHeaderSize)))
			return
		}

		// Chunked bodies carry no length up front
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		}
		c.Next()
	}
}
