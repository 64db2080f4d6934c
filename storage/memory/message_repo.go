package memory

import (
	"context"

	"campusride/pkg/models"
)

type messageRepo struct {
	s *Store
}

func (r *messageRepo) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	defer r.s.lock()()

	c := *msg
	c.ID = newID()
	c.CreatedAt = now()
	r.s.st.messages = append(r.s.st.messages, &c)
	out := c
	return &out, nil
}

// ListRoom returns the newest limit messages in chronological order.
func (r *messageRepo) ListRoom(_ context.Context, roomType, roomID string, limit int) ([]*models.Message, error) {
	defer r.s.lock()()

	var out []*models.Message
	for _, m := range r.s.st.messages {
		if m.RoomType == roomType && m.RoomID == roomID {
			c := *m
			out = append(out, &c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *messageRepo) MarkSenderDeleted(_ context.Context, senderID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, m := range r.s.st.messages {
		if m.SenderID == senderID && !m.SenderDeleted {
			m.SenderDeleted = true
			n++
		}
	}
	return n, nil
}
