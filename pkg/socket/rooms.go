package socket

// QueueRoom is the single room shared by everyone watching the global queue chat.
const QueueRoom = "queue_room"

func UserRoom(userID string) string {
	return "user:" + userID
}

func RoleRoom(role string) string {
	return "role:" + role
}

func TripRoom(rideID string) string {
	return "trip_room:" + rideID
}

func userRooms(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, UserRoom(id))
	}
	return out
}
