// Package memory is a goroutine-safe, map-backed implementation of
// storage.IStorage. It is used by the service tests and by STORE_DRIVER=memory
// for local runs without a database. Every conditional write happens under
// one mutex, which gives it the same atomicity the database backends get
// from single-statement updates.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusride/pkg/models"
	"campusride/storage"
)

type state struct {
	mu sync.Mutex

	seq        int64
	users      map[string]*models.User
	entries    map[string]*models.QueueEntry
	rides      map[string]*models.Ride
	trips      map[string]*models.Trip
	messages   []*models.Message
	complaints map[string]*models.Complaint
	schedules  map[string]*models.Schedule
}

type Store struct {
	st   *state
	inTx bool
}

var _ storage.IStorage = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		users:      make(map[string]*models.User),
		entries:    make(map[string]*models.QueueEntry),
		rides:      make(map[string]*models.Ride),
		trips:      make(map[string]*models.Trip),
		complaints: make(map[string]*models.Complaint),
		schedules:  make(map[string]*models.Schedule),
	}}
}

func (s *Store) User() storage.IUserStorage           { return &userRepo{s} }
func (s *Store) Queue() storage.IQueueStorage         { return &queueRepo{s} }
func (s *Store) Ride() storage.IRideStorage           { return &rideRepo{s} }
func (s *Store) Trip() storage.ITripStorage           { return &tripRepo{s} }
func (s *Store) Message() storage.IMessageStorage     { return &messageRepo{s} }
func (s *Store) Complaint() storage.IComplaintStorage { return &complaintRepo{s} }
func (s *Store) Schedule() storage.IScheduleStorage   { return &scheduleRepo{s} }

func (s *Store) Close() {}

// InTx holds the store lock for the whole of fn and restores a snapshot
// when fn fails.
func (s *Store) InTx(_ context.Context, fn func(tx storage.IStorage) error) error {
	if s.inTx {
		return fn(s)
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	snap := s.st.snapshot()
	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.restore(snap)
		return err
	}
	return nil
}

// lock is a no-op inside InTx, where the lock is already held.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (st *state) nextSeq() int64 {
	st.seq++
	return st.seq
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

type snapshot struct {
	seq        int64
	users      map[string]*models.User
	entries    map[string]*models.QueueEntry
	rides      map[string]*models.Ride
	trips      map[string]*models.Trip
	messages   []*models.Message
	complaints map[string]*models.Complaint
	schedules  map[string]*models.Schedule
}

func (st *state) snapshot() snapshot {
	snap := snapshot{
		seq:        st.seq,
		users:      make(map[string]*models.User, len(st.users)),
		entries:    make(map[string]*models.QueueEntry, len(st.entries)),
		rides:      make(map[string]*models.Ride, len(st.rides)),
		trips:      make(map[string]*models.Trip, len(st.trips)),
		messages:   make([]*models.Message, 0, len(st.messages)),
		complaints: make(map[string]*models.Complaint, len(st.complaints)),
		schedules:  make(map[string]*models.Schedule, len(st.schedules)),
	}
	for k, v := range st.users {
		snap.users[k] = cloneUser(v)
	}
	for k, v := range st.entries {
		snap.entries[k] = cloneEntry(v)
	}
	for k, v := range st.rides {
		snap.rides[k] = cloneRide(v)
	}
	for k, v := range st.trips {
		snap.trips[k] = cloneTrip(v)
	}
	for _, m := range st.messages {
		c := *m
		snap.messages = append(snap.messages, &c)
	}
	for k, v := range st.complaints {
		c := *v
		snap.complaints[k] = &c
	}
	for k, v := range st.schedules {
		snap.schedules[k] = cloneSchedule(v)
	}
	return snap
}

func (st *state) restore(snap snapshot) {
	st.seq = snap.seq
	st.users = snap.users
	st.entries = snap.entries
	st.rides = snap.rides
	st.trips = snap.trips
	st.messages = snap.messages
	st.complaints = snap.complaints
	st.schedules = snap.schedules
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneEntry(e *models.QueueEntry) *models.QueueEntry {
	c := *e
	c.RideID = cloneStr(e.RideID)
	c.DriverID = cloneStr(e.DriverID)
	c.ArrivedAt = cloneTime(e.ArrivedAt)
	c.StartedAt = cloneTime(e.StartedAt)
	c.CompletedAt = cloneTime(e.CompletedAt)
	return &c
}

func cloneRide(r *models.Ride) *models.Ride {
	c := *r
	c.DriverID = cloneStr(r.DriverID)
	c.Students = append([]string(nil), r.Students...)
	c.StartedAt = cloneTime(r.StartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	return &c
}

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	c.DriverID = cloneStr(t.DriverID)
	c.Students = append([]string(nil), t.Students...)
	c.PickupPoints = append([]string(nil), t.PickupPoints...)
	c.Destinations = append([]string(nil), t.Destinations...)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func strEq(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func without(list []string, drop map[string]struct{}) ([]string, bool) {
	out := make([]string, 0, len(list))
	changed := false
	for _, v := range list {
		if _, ok := drop[v]; ok {
			changed = true
			continue
		}
		out = append(out, v)
	}
	return out, changed
}
