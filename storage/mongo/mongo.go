// Package mongo implements storage.IStorage on MongoDB. Multi-document
// transactions need a replica set, so the configured URI must point at one.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const (
	colUsers      = "users"
	colQueue      = "queue_entries"
	colRides      = "rides"
	colTrips      = "trips"
	colMessages   = "messages"
	colComplaints = "complaints"
	colSchedules  = "schedules"
	colCounters   = "counters"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	sess   mongo.Session
	log    logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Error("failed to connect Mongo", logger.Error(err))
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		log.Error("Mongo ping failed", logger.Error(err))
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := NewWithClient(client, cfg.MongoDB, log)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("Mongo connected", logger.String("db", cfg.MongoDB))
	return s, nil
}

// NewWithClient wraps an already connected client. dbName defaults to "campusride".
func NewWithClient(client *mongo.Client, dbName string, log logger.ILogger) *Store {
	if dbName == "" {
		dbName = "campusride"
	}
	return &Store{client: client, db: client.Database(dbName), log: log}
}

// EnsureIndexes creates the unique indexes that carry the booking and
// driver invariants.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colQueue: {
			{
				Keys: bson.D{{Key: "student_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("active_student_uidx").
					SetPartialFilterExpression(bson.M{"status": bson.M{"$in": models.ActiveQueueStatuses}}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "queue_at", Value: 1}, {Key: "seq", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "ride_id", Value: 1}}},
		},
		colRides: {
			{
				Keys: bson.D{{Key: "driver_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("in_transit_driver_uidx").
					SetPartialFilterExpression(bson.M{
						"status":    models.RideStatusInTransit,
						"driver_id": bson.M{"$type": "string"},
					}),
			},
		},
		colTrips: {
			{Keys: bson.D{{Key: "ride_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "students", Value: 1}}},
		},
		colMessages: {
			{Keys: bson.D{{Key: "room_type", Value: 1}, {Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colSchedules: {
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}}},
		},
	}

	for coll, indexes := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			s.log.Error("failed to create indexes", logger.String("collection", coll), logger.Error(err))
			return err
		}
	}
	return nil
}

func (s *Store) Close() {
	if s.sess != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		s.log.Warning("Mongo disconnect failed", logger.Error(err))
	}
}

// Reset drops the database and recreates its indexes.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.Drop(ctx); err != nil {
		s.log.Error("failed to drop database", logger.Error(err))
		return err
	}
	return s.EnsureIndexes(ctx)
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) User() storage.IUserStorage           { return &userRepo{s} }
func (s *Store) Queue() storage.IQueueStorage         { return &queueRepo{s} }
func (s *Store) Ride() storage.IRideStorage           { return &rideRepo{s} }
func (s *Store) Trip() storage.ITripStorage           { return &tripRepo{s} }
func (s *Store) Message() storage.IMessageStorage     { return &messageRepo{s} }
func (s *Store) Complaint() storage.IComplaintStorage { return &complaintRepo{s} }
func (s *Store) Schedule() storage.IScheduleStorage   { return &scheduleRepo{s} }

func (s *Store) InTx(ctx context.Context, fn func(tx storage.IStorage) error) error {
	if s.sess != nil {
		return fn(s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		s.log.Error("failed to start Mongo session", logger.Error(err))
		return err
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(_ mongo.SessionContext) (interface{}, error) {
		return nil, fn(&Store{client: s.client, db: s.db, sess: sess, log: s.log})
	})
	return err
}

// bind attaches the open transaction, if any, to ctx.
func (s *Store) bind(ctx context.Context) context.Context {
	if s.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// nextSeq hands out the creation-order tie breaker for queue entries.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.coll(colCounters).FindOneAndUpdate(
		s.bind(ctx),
		bson.M{"_id": colQueue},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Value, err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// inIDs builds an $in filter; an empty list matches nothing.
func inIDs(ids []string) bson.M {
	if ids == nil {
		ids = []string{}
	}
	return bson.M{"$in": ids}
}

func findOne[M any, D any](ctx context.Context, coll *mongo.Collection, filter any, conv func(*D) *M, opts ...*options.FindOneOptions) (*M, error) {
	var doc D
	if err := coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, err
	}
	return conv(&doc), nil
}

func findMany[M any, D any](ctx context.Context, coll *mongo.Collection, filter any, conv func(*D) *M, opts ...*options.FindOptions) ([]*M, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*M, 0, len(docs))
	for i := range docs {
		out = append(out, conv(&docs[i]))
	}
	return out, nil
}
