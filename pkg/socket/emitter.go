package socket

// Emitter is the fan-out contract the ride services publish through. Every
// call is fire-and-forget: a missing audience is not an error and nothing
// is reported back to the caller.
type Emitter interface {
	EmitToUser(userID, event string, payload any)
	EmitToRole(role, event string, payload any)
	EmitToQueueRoom(event string, payload any)
	EmitToRide(rideID, event string, payload any)
	// EmitToRooms delivers once per session even when a session sits in
	// several of the rooms.
	EmitToRooms(rooms []string, event string, payload any)

	JoinQueueRoom(userIDs []string)
	LeaveQueueRoom(userIDs []string)
	// JoinTripRoom moves the users out of the queue room and into the
	// ride's trip room. Drivers stay in the queue room.
	JoinTripRoom(userIDs []string, rideID string)
	LeaveTripRoom(userIDs []string, rideID string)

	// DisconnectUser closes every live session of the user and revokes
	// their rooms before returning.
	DisconnectUser(userID string)
}

// Fanout forwards every call to each emitter in order.
type Fanout []Emitter

var _ Emitter = Fanout(nil)

func (f Fanout) EmitToUser(userID, event string, payload any) {
	for _, e := range f {
		e.EmitToUser(userID, event, payload)
	}
}

func (f Fanout) EmitToRole(role, event string, payload any) {
	for _, e := range f {
		e.EmitToRole(role, event, payload)
	}
}

func (f Fanout) EmitToQueueRoom(event string, payload any) {
	for _, e := range f {
		e.EmitToQueueRoom(event, payload)
	}
}

func (f Fanout) EmitToRide(rideID, event string, payload any) {
	for _, e := range f {
		e.EmitToRide(rideID, event, payload)
	}
}

func (f Fanout) EmitToRooms(rooms []string, event string, payload any) {
	for _, e := range f {
		e.EmitToRooms(rooms, event, payload)
	}
}

func (f Fanout) JoinQueueRoom(userIDs []string) {
	for _, e := range f {
		e.JoinQueueRoom(userIDs)
	}
}

func (f Fanout) LeaveQueueRoom(userIDs []string) {
	for _, e := range f {
		e.LeaveQueueRoom(userIDs)
	}
}

func (f Fanout) JoinTripRoom(userIDs []string, rideID string) {
	for _, e := range f {
		e.JoinTripRoom(userIDs, rideID)
	}
}

func (f Fanout) LeaveTripRoom(userIDs []string, rideID string) {
	for _, e := range f {
		e.LeaveTripRoom(userIDs, rideID)
	}
}

func (f Fanout) DisconnectUser(userID string) {
	for _, e := range f {
		e.DisconnectUser(userID)
	}
}

// Nop drops everything.
type Nop struct{}

func (Nop) EmitToUser(string, string, any)    {}
func (Nop) EmitToRole(string, string, any)    {}
func (Nop) EmitToQueueRoom(string, any)       {}
func (Nop) EmitToRide(string, string, any)    {}
func (Nop) EmitToRooms([]string, string, any) {}
func (Nop) JoinQueueRoom([]string)            {}
func (Nop) LeaveQueueRoom([]string)           {}
func (Nop) JoinTripRoom([]string, string)     {}
func (Nop) LeaveTripRoom([]string, string)    {}
func (Nop) DisconnectUser(string)             {}
