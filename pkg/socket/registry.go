package socket

import (
	"sort"
	"sync"
)

// SessionRoomRegistry tracks which rooms each live session belongs to.
// It is never the source of truth: rooms are rebuilt from stored ride and
// queue state whenever a session connects.
type SessionRoomRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{} // session -> rooms
	rooms    map[string]map[string]struct{} // room -> sessions
}

func NewSessionRoomRegistry() *SessionRoomRegistry {
	return &SessionRoomRegistry{
		sessions: make(map[string]map[string]struct{}),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// Join adds sessionID to each room. Already-joined rooms are skipped.
// Returns the number of rooms actually joined.
func (r *SessionRoomRegistry) Join(sessionID string, rooms ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.join(sessionID, rooms...)
}

func (r *SessionRoomRegistry) join(sessionID string, rooms ...string) int {
	joined, ok := r.sessions[sessionID]
	if !ok {
		joined = make(map[string]struct{})
		r.sessions[sessionID] = joined
	}
	n := 0
	for _, room := range rooms {
		if _, ok := joined[room]; ok {
			continue
		}
		joined[room] = struct{}{}
		members, ok := r.rooms[room]
		if !ok {
			members = make(map[string]struct{})
			r.rooms[room] = members
		}
		members[sessionID] = struct{}{}
		n++
	}
	return n
}

func (r *SessionRoomRegistry) Leave(sessionID string, rooms ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(sessionID, rooms...)
}

func (r *SessionRoomRegistry) leave(sessionID string, rooms ...string) int {
	joined, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	n := 0
	for _, room := range rooms {
		if _, ok := joined[room]; !ok {
			continue
		}
		delete(joined, room)
		if members, ok := r.rooms[room]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
		n++
	}
	return n
}

// Remove drops the session and every room membership it held.
func (r *SessionRoomRegistry) Remove(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	revoked := make([]string, 0, len(joined))
	for room := range joined {
		revoked = append(revoked, room)
	}
	r.leave(sessionID, revoked...)
	delete(r.sessions, sessionID)
	sort.Strings(revoked)
	return revoked
}

// Members returns the distinct sessions found in any of rooms.
func (r *SessionRoomRegistry) Members(rooms ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members(rooms...)
}

func (r *SessionRoomRegistry) members(rooms ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, room := range rooms {
		for sessionID := range r.rooms[room] {
			if _, ok := seen[sessionID]; ok {
				continue
			}
			seen[sessionID] = struct{}{}
			out = append(out, sessionID)
		}
	}
	return out
}

// MoveMembers applies leave then join to every session found in sources, as
// one step.
func (r *SessionRoomRegistry) MoveMembers(sources []string, leave []string, join []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sessionID := range r.members(sources...) {
		r.leave(sessionID, leave...)
		r.join(sessionID, join...)
	}
}

func (r *SessionRoomRegistry) Rooms(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sessions[sessionID]))
	for room := range r.sessions[sessionID] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (r *SessionRoomRegistry) InRoom(sessionID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID][room]
	return ok
}

func (r *SessionRoomRegistry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
