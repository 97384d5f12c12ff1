package httpapi

import "github.com/gin-gonic/gin"

// The error body shape is fixed: {"errors":[{"msg":"..."}]}. Clients render
// the msg fields directly, so every message here is user-facing.
type errorItem struct {
	Msg string `json:"msg"`
}

func errorBody(msgs ...string) gin.H {
	items := make([]errorItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, errorItem{Msg: m})
	}
	return gin.H{"errors": items}
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorBody(msg))
}
