package api

import (
	"github.com/gin-gonic/gin"

	"campusride/service"
)

func (h *Handler) listSchedules(c *gin.Context) {
	user := currentUser(c)
	schedules, err := h.Svc.Schedule().List(c.Request.Context(), user.ID, user.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Schedules", schedules)
}

func (h *Handler) createSchedule(c *gin.Context) {
	var req service.CreateScheduleRequest
	if !h.bind(c, &req) {
		return
	}
	schedule, err := h.Svc.Schedule().Create(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Schedule created", schedule)
}
