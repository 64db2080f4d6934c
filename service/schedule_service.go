package service

import (
	"context"
	"strings"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

type CreateScheduleRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=1000"`
	Date        string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime   string `json:"startTime" binding:"required,datetime=15:04"`
	EndTime     string `json:"endTime" binding:"required,datetime=15:04"`
	TargetRole  string `json:"targetRole" binding:"omitempty,oneof=student driver all"`
	DriverID    string `json:"driverId" binding:"omitempty,max=64"`
}

var createScheduleMessages = map[string]string{
	"Title":              "Title is required",
	"Title.max":          "Title is too long",
	"Description":        "Description is too long",
	"Date":               "Date is required",
	"Date.datetime":      "Date must be YYYY-MM-DD",
	"StartTime":          "Start time is required",
	"StartTime.datetime": "Start time must be HH:MM",
	"EndTime":            "End time is required",
	"EndTime.datetime":   "End time must be HH:MM",
	"TargetRole":         "Invalid target role",
	"DriverID":           "Invalid driver ID",
}

type ScheduleView struct {
	*models.Schedule
	Driver  *models.UserRef `json:"driver"`
	Creator *models.UserRef `json:"createdBy"`
}

type ScheduleService interface {
	Create(ctx context.Context, adminID string, req CreateScheduleRequest) (*ScheduleView, error)
	// List returns every schedule to admins. Others see schedules aimed at
	// everyone or at their role, plus the ones naming them as driver.
	List(ctx context.Context, userID, role string) ([]ScheduleView, error)
}

type scheduleService struct {
	stg storage.IStorage
	log logger.ILogger
}

func NewScheduleService(stg storage.IStorage, log logger.ILogger) ScheduleService {
	return &scheduleService{
		stg: stg,
		log: log,
	}
}

func (s *scheduleService) Create(ctx context.Context, adminID string, req CreateScheduleRequest) (*ScheduleView, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.DriverID = strings.TrimSpace(req.DriverID)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err, createScheduleMessages, "Invalid schedule")
	}
	if req.EndTime <= req.StartTime {
		return nil, apperr.Validation("End time must be after start time")
	}

	schedule := &models.Schedule{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		TargetRole:  req.TargetRole,
		CreatedBy:   adminID,
	}
	if req.DriverID != "" {
		driver, err := s.stg.User().GetByID(ctx, req.DriverID)
		if err != nil {
			return nil, err
		}
		if driver == nil || driver.Role != models.RoleDriver {
			return nil, apperr.Validation("Invalid driver ID")
		}
		schedule.DriverID = models.StringPtr(driver.ID)
	}

	created, err := s.stg.Schedule().Create(ctx, schedule)
	if err != nil {
		return nil, err
	}
	s.log.Info("schedule created",
		logger.String("schedule", created.ID),
		logger.String("date", created.Date),
		logger.String("target", created.TargetRole),
	)

	views, err := s.views(ctx, []*models.Schedule{created})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *scheduleService) List(ctx context.Context, userID, role string) ([]ScheduleView, error) {
	var filter models.ScheduleFilter
	if role != models.RoleAdmin {
		filter = models.ScheduleFilter{
			TargetRoles: []string{models.ScheduleTargetAll, role},
			DriverID:    userID,
		}
	}
	schedules, err := s.stg.Schedule().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, schedules)
}

func (s *scheduleService) views(ctx context.Context, schedules []*models.Schedule) ([]ScheduleView, error) {
	userIDs := make([]string, 0, 2*len(schedules))
	for _, sc := range schedules {
		userIDs = append(userIDs, sc.CreatedBy)
		if sc.DriverID != nil {
			userIDs = append(userIDs, *sc.DriverID)
		}
	}
	users, err := s.stg.User().GetByIDs(ctx, uniqueStrings(userIDs))
	if err != nil {
		return nil, err
	}

	out := make([]ScheduleView, 0, len(schedules))
	for _, sc := range schedules {
		out = append(out, ScheduleView{
			Schedule: sc,
			Driver:   users[models.Deref(sc.DriverID)].Ref(),
			Creator:  users[sc.CreatedBy].Ref(),
		})
	}
	return out, nil
}
