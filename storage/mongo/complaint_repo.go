package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

type complaintRepo struct {
	s *Store
}

func (r *complaintRepo) c() *mongo.Collection { return r.s.coll(colComplaints) }

var newestFirst = bson.D{{Key: "created_at", Value: -1}}

func (r *complaintRepo) Create(ctx context.Context, complaint *models.Complaint) (*models.Complaint, error) {
	ts := now()
	doc := complaintDoc{
		ID:        uuid.NewString(),
		StudentID: complaint.StudentID,
		TripID:    complaint.TripID,
		RideID:    complaint.RideID,
		Text:      complaint.Text,
		Status:    complaint.Status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if doc.Status == "" {
		doc.Status = models.ComplaintStatusSubmitted
	}
	if _, err := r.c().InsertOne(r.s.bind(ctx), doc); err != nil {
		r.s.log.Error("failed to create complaint", logger.String("student", doc.StudentID), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *complaintRepo) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id}, (*complaintDoc).model)
	if err != nil {
		r.s.log.Error("failed to get complaint", logger.String("id", id), logger.Error(err))
	}
	return c, err
}

func (r *complaintRepo) ListByStudent(ctx context.Context, studentID string) ([]*models.Complaint, error) {
	out, err := findMany(r.s.bind(ctx), r.c(), bson.M{"student_id": studentID}, (*complaintDoc).model,
		options.Find().SetSort(newestFirst))
	if err != nil {
		r.s.log.Error("failed to list complaints", logger.String("student", studentID), logger.Error(err))
	}
	return out, err
}

func (r *complaintRepo) ListAll(ctx context.Context) ([]*models.Complaint, error) {
	out, err := findMany(r.s.bind(ctx), r.c(), bson.M{}, (*complaintDoc).model,
		options.Find().SetSort(newestFirst))
	if err != nil {
		r.s.log.Error("failed to list complaints", logger.Error(err))
	}
	return out, err
}

func (r *complaintRepo) UpdateStatus(ctx context.Context, id, status, response string, resolvedBy *string) (*models.Complaint, error) {
	var doc complaintDoc
	err := r.c().FindOneAndUpdate(r.s.bind(ctx),
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":         status,
			"admin_response": response,
			"resolved_by":    resolvedBy,
			"updated_at":     now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storage.ErrNotFound
		}
		r.s.log.Error("failed to update complaint", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *complaintRepo) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	res, err := r.c().DeleteMany(r.s.bind(ctx), bson.M{"student_id": studentID})
	if err != nil {
		r.s.log.Error("failed to delete complaints", logger.String("student", studentID), logger.Error(err))
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *complaintRepo) ClearResolvedBy(ctx context.Context, userID string) (int64, error) {
	res, err := r.c().UpdateMany(r.s.bind(ctx),
		bson.M{"resolved_by": userID},
		bson.M{"$set": bson.M{"resolved_by": nil, "updated_at": now()}})
	if err != nil {
		r.s.log.Error("failed to clear complaint resolver", logger.String("user", userID), logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *complaintRepo) CountByStatus(ctx context.Context, statuses ...string) (int, error) {
	n, err := r.c().CountDocuments(r.s.bind(ctx), bson.M{"status": bson.M{"$in": statuses}})
	if err != nil {
		r.s.log.Error("failed to count complaints", logger.Error(err))
	}
	return int(n), err
}
