package mongo

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/pkg/logger"
	"campusride/pkg/models"
)

type messageRepo struct {
	s *Store
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	doc := messageDoc{
		ID:         uuid.NewString(),
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		RoomType:   msg.RoomType,
		RoomID:     msg.RoomID,
		Content:    msg.Content,
		CreatedAt:  now(),
	}
	if _, err := r.s.coll(colMessages).InsertOne(r.s.bind(ctx), doc); err != nil {
		r.s.log.Error("failed to create message", logger.String("room", doc.RoomType+":"+doc.RoomID), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *messageRepo) ListRoom(ctx context.Context, roomType, roomID string, limit int) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	messages, err := findMany(r.s.bind(ctx), r.s.coll(colMessages),
		bson.M{"room_type": roomType, "room_id": roomID}, (*messageDoc).model, opts)
	if err != nil {
		r.s.log.Error("failed to list messages", logger.String("room", roomType+":"+roomID), logger.Error(err))
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *messageRepo) MarkSenderDeleted(ctx context.Context, senderID string) (int64, error) {
	res, err := r.s.coll(colMessages).UpdateMany(r.s.bind(ctx),
		bson.M{"sender_id": senderID, "sender_deleted": false},
		bson.M{"$set": bson.M{"sender_deleted": true}})
	if err != nil {
		r.s.log.Error("failed to flag sender messages", logger.String("sender", senderID), logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}
