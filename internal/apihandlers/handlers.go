package apihandlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"muninn/internal/app"
)

const ownerIDKey = "owner_id"

// APIHandler exposes the application over HTTP. All handlers assume
// RequireAuth already resolved the owner id, except the auth routes.
type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// RequireAuth validates the bearer token and stores the owner id in the
// request context.
func (h *APIHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		ownerID, err := h.App.AuthService.ValidateToken(token)
		if err != nil {
			Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) int64 {
	return c.GetInt64(ownerIDKey)
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter with a default.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
