package postgres

import (
	"context"

	"github.com/google/uuid"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const messageColumns = `id, sender_id, sender_role, room_type, room_id, content, sender_deleted, created_at`

type messageRepo struct {
	db  querier
	log logger.ILogger
}

func NewMessageRepo(db querier, log logger.ILogger) storage.IMessageStorage {
	return &messageRepo{db: db, log: log}
}

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.SenderRole, &m.RoomType, &m.RoomID, &m.Content, &m.SenderDeleted, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	created, err := scanMessage(r.db.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, sender_role, room_type, room_id, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+messageColumns,
		uuid.NewString(), msg.SenderID, msg.SenderRole, msg.RoomType, msg.RoomID, msg.Content,
	))
	if err != nil {
		r.log.Error("failed to create message", logger.String("room", msg.RoomType+":"+msg.RoomID), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *messageRepo) ListRoom(ctx context.Context, roomType, roomID string, limit int) ([]*models.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE room_type = $1 AND room_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT NULLIF($3, 0)
		) recent
		ORDER BY created_at, id`, roomType, roomID, max(limit, 0))
	if err != nil {
		r.log.Error("failed to list messages", logger.String("room", roomType+":"+roomID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepo) MarkSenderDeleted(ctx context.Context, senderID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET sender_deleted = TRUE WHERE sender_id = $1 AND NOT sender_deleted`, senderID)
	if err != nil {
		r.log.Error("failed to flag sender messages", logger.String("sender", senderID), logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
