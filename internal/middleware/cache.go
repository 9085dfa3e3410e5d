package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge  int
	Private bool
	Vary    []string
}

// DefaultCacheConfig suits the public catalog: short-lived and shared.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge: 60,
		Vary:   []string{"Accept"},
	}
}

// Cache sets Cache-Control on successful GET responses of a route group.
// Everything else is marked no-store.
func Cache(config CacheConfig) gin.HandlerFunc {
	visibility := "public"
	if config.Private {
		visibility = "private"
	}
	directive := visibility + ", max-age=" + strconv.Itoa(config.MaxAge)
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		c.Header("Cache-Control", directive)
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()
	}
}

// NoStore forbids caching of every response.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
