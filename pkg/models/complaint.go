package models

import "time"

const (
	ComplaintStatusSubmitted = "submitted"
	ComplaintStatusInReview  = "in_review"
	ComplaintStatusResolved  = "resolved"
	ComplaintStatusRejected  = "rejected"

	MaxComplaintLength = 2000
)

var (
	ComplaintStatuses     = []string{ComplaintStatusSubmitted, ComplaintStatusInReview, ComplaintStatusResolved, ComplaintStatusRejected}
	OpenComplaintStatuses = []string{ComplaintStatusSubmitted, ComplaintStatusInReview}
)

type Complaint struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	TripID        *string   `json:"tripId"`
	RideID        *string   `json:"rideId"`
	Text          string    `json:"text"`
	Status        string    `json:"status"`
	AdminResponse string    `json:"adminResponse"`
	ResolvedBy    *string   `json:"resolvedBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
