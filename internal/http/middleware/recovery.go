// README: Panic recovery middleware.
package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[HTTP] action=panic request_id=%s path=%s err=%v\n%s", RequestIDFrom(c), c.Request.URL.Path, r, debug.Stack())
				abortJSON(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}
