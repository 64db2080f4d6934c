package api

import (
	"github.com/gin-gonic/gin"
)

type bookRequest struct {
	Pickup      string `json:"pickup" binding:"required,max=200"`
	Destination string `json:"destination" binding:"required,max=200"`
}

func (h *Handler) bookRide(c *gin.Context) {
	var req bookRequest
	if !h.bind(c, &req) {
		return
	}
	ride, err := h.Svc.Queue().BookRide(c.Request.Context(), currentUser(c).ID, req.Pickup, req.Destination)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Ride booked", ride)
}

func (h *Handler) leaveQueue(c *gin.Context) {
	res, err := h.Svc.Queue().LeaveQueue(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Left the queue", res)
}

func (h *Handler) studentCurrentRide(c *gin.Context) {
	ride, err := h.Svc.Queue().GetStudentCurrentRide(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Current ride", ride)
}

func (h *Handler) studentHistory(c *gin.Context) {
	items, err := h.Svc.Queue().GetStudentRideHistory(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Ride history", items)
}

func (h *Handler) driverCurrentRide(c *gin.Context) {
	ride, err := h.Svc.Queue().GetDriverCurrentRide(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Current ride", ride)
}

func (h *Handler) markArrived(c *gin.Context) {
	res, err := h.Svc.Queue().MarkStudentArrived(c.Request.Context(), currentUser(c).ID, c.Param("queueEntryId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Student marked as arrived", res)
}

func (h *Handler) cancelStudent(c *gin.Context) {
	res, err := h.Svc.Queue().CancelStudentFromRide(c.Request.Context(), currentUser(c).ID, c.Param("queueEntryId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Student cancelled", res)
}

func (h *Handler) startTrip(c *gin.Context) {
	ride, err := h.Svc.Queue().StartTrip(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Trip started", ride)
}

func (h *Handler) completeTrip(c *gin.Context) {
	res, err := h.Svc.Queue().CompleteTrip(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Trip completed", res)
}

func (h *Handler) adminQueue(c *gin.Context) {
	overview, err := h.Svc.Queue().GetAdminQueueOverview(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Queue overview", overview)
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.Svc.Queue().GetAdminStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Stats", stats)
}
