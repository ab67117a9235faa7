package middlewares

import "github.com/gin-gonic/gin"

// abort writes the failure envelope used by every handler.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"data":    nil,
	})
}
