package models

import "time"

const (
	RoomTypeQueue = "queue"
	RoomTypeTrip  = "trip"

	// QueueRoomID is the fixed room id of the single global queue chat.
	QueueRoomID = "queue"

	MaxMessageLength = 1000
)

type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	SenderRole    string    `json:"senderRole"`
	RoomType      string    `json:"roomType"`
	RoomID        string    `json:"roomId"`
	Content       string    `json:"content"`
	SenderDeleted bool      `json:"senderDeleted"`
	CreatedAt     time.Time `json:"createdAt"`
}
