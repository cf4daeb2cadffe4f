package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin sends callers outside the admin domain back to the default route.
func RequireAdmin(defaultRoute string) gin.HandlerFunc {
	if defaultRoute == "" {
		defaultRoute = "/"
	}
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsAdmin) {
			c.Redirect(http.StatusSeeOther, defaultRoute)
			c.Abort()
			return
		}
		c.Next()
	}
}
