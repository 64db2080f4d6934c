package api

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"campusride/pkg/models"
	"campusride/service"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// Role is the portal the user signed in from; empty skips the check.
	Role     string `json:"role" binding:"omitempty,oneof=student driver admin"`
}

type removeByEmailRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Permanent bool   `json:"permanent"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Svc.Auth().Login(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Logged in", res)
}

func (h *Handler) signup(c *gin.Context) {
	var req service.CreateUserRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Svc.Auth().Signup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Signup successful", res)
}

func (h *Handler) me(c *gin.Context) {
	ok(c, "Current user", currentUser(c))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.Svc.User().List(c.Request.Context(), models.UserFilter{
		Role:   c.Query("role"),
		Search: c.Query("search"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Users", users)
}

func (h *Handler) createUser(c *gin.Context) {
	var req service.CreateUserRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.Svc.User().Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "User created", user)
}

func (h *Handler) removeUser(c *gin.Context) {
	permanent := cast.ToBool(c.Query("permanent"))
	res, err := h.Svc.User().RemoveByID(c.Request.Context(), currentUser(c).ID, c.Param("id"), permanent)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, removalMessage(res), res)
}

func (h *Handler) removeUserByEmail(c *gin.Context) {
	var req removeByEmailRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Svc.User().RemoveByEmail(c.Request.Context(), currentUser(c).ID, req.Email, req.Permanent)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, removalMessage(res), res)
}

func (h *Handler) reactivateUser(c *gin.Context) {
	user, err := h.Svc.User().Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "User reactivated", user)
}

func removalMessage(res *service.RemovalResult) string {
	if res.Action == service.ActionDeleted {
		return "User permanently deleted"
	}
	return "User deactivated"
}
