package models

// Realtime event names.
const (
	EventQueueUpdated   = "queue:updated"
	EventQueueCount     = "queue:count"
	EventQueueLeft      = "queue:left"
	EventQueueReordered = "queue:reordered"

	EventRideUpdated = "ride:updated"
	EventRideFull    = "ride:full"

	EventTripStarted   = "trip:started"
	EventTripAssigned  = "trip:assigned"
	EventTripCompleted = "trip:completed"

	EventStudentRequeued = "student:requeued"
	EventStudentRemoved  = "student:removed"

	EventQueueChatMessage = "queueChatMessage"
	EventTripChatMessage  = "tripChatMessage"

	EventComplaintNew           = "complaint:new"
	EventComplaintStatusUpdated = "complaint:statusUpdated"

	EventSocketReady = "socket:ready"
)
