package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"campusride/pkg/apperr"
	"campusride/pkg/models"
)

const userKey = "user"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// resolve turns the request token into the live user. Deactivated accounts
// are rejected even while their token is still valid.
func (h *Handler) resolve(c *gin.Context) (*models.User, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	claims, err := h.Svc.Auth().ParseToken(token)
	if err != nil {
		return nil, err
	}
	return h.Svc.Auth().Me(c.Request.Context(), claims.Subject)
}

func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.resolve(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (h *Handler) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		for _, role := range roles {
			if user != nil && user.Role == role {
				c.Next()
				return
			}
		}
		h.fail(c, apperr.Forbidden("You do not have access to this resource"))
	}
}

func currentUser(c *gin.Context) *models.User {
	v, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
