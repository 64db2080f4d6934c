package api

import (
	"github.com/gin-gonic/gin"
)

type complaintRequest struct {
	Text   string `json:"text" binding:"required,max=2000"`
	RideID string `json:"rideId" binding:"omitempty,max=64"`
}

type complaintStatusRequest struct {
	Status   string `json:"status" binding:"required,oneof=submitted in_review resolved rejected"`
	Response string `json:"response" binding:"max=2000"`
}

func (h *Handler) createComplaint(c *gin.Context) {
	var req complaintRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.Svc.Complaint().Create(c.Request.Context(), currentUser(c).ID, req.Text, req.RideID)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Complaint submitted", view)
}

func (h *Handler) myComplaints(c *gin.Context) {
	list, err := h.Svc.Complaint().ListMine(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Complaints", list)
}

func (h *Handler) allComplaints(c *gin.Context) {
	list, err := h.Svc.Complaint().ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Complaints", list)
}

func (h *Handler) updateComplaintStatus(c *gin.Context) {
	var req complaintStatusRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.Svc.Complaint().UpdateStatus(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Status, req.Response)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Complaint updated", view)
}
