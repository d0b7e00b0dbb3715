package middleware

import (
	"slices"

	"github.com/vitrinhq/vitrin/internal/common/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS lets the storefront origins call the API. No configured origin, or
// "*", allows every origin without credentials.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  cfg.AllowHeaders,
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = cfg.AllowCredentials
	}
	return cors.New(c)
}
