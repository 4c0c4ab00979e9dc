package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
	"github.com/campuspass/outpass-api/internal/observability"
	"github.com/campuspass/outpass-api/internal/repository"
	"github.com/campuspass/outpass-api/pkg/qrimage"
)

// Outpass workflow errors.
var (
	ErrOutpassNotFound    = errors.New("outpass not found")
	ErrNotOwner           = errors.New("outpass belongs to another student")
	ErrNotAssigned        = errors.New("outpass is not assigned to this reviewer")
	ErrAlreadyProcessed   = errors.New("stage has already been decided")
	ErrAdvisorNotApproved = errors.New("advisor approval is still pending")
	ErrInvalidState       = errors.New("outpass is not in a state that allows this action")
	ErrRemarksRequired    = errors.New("remarks are required when rejecting")
	ErrNoAdvisorAvailable = errors.New("no active advisor available to review")
	ErrPastDate           = errors.New("out date must not be in the past")
	ErrTooFarAhead        = errors.New("out date is too far in the future")
	ErrReturnBeforeOut    = errors.New("expected return time must be after out time")
	ErrQRNotAvailable     = errors.New("no active qr code for this outpass")
)

// Remarks recorded on behalf of actors during synthetic transitions.
const (
	overrideAdvisorRemark = "Override approval by HOD"
	cancelledRemark       = "Cancelled by student"
)

// OutpassService drives the leave request workflow from submission through
// the two approval stages to cancellation and QR retrieval.
type OutpassService interface {
	Submit(ctx context.Context, studentID uint, payload dto.OutpassCreateRequest, ip string) (dto.OutpassResponse, error)
	Get(ctx context.Context, id uint) (dto.OutpassResponse, error)
	GetForStudent(ctx context.Context, studentID, id uint) (dto.OutpassResponse, error)
	List(ctx context.Context, query dto.OutpassListQuery) ([]dto.OutpassResponse, error)
	ListForStudent(ctx context.Context, studentID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error)
	ListForAdvisor(ctx context.Context, advisorID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error)
	ListForDepartment(ctx context.Context, deptID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error)
	History(ctx context.Context, id uint) ([]dto.OutpassLogResponse, error)
	AdvisorDecide(ctx context.Context, advisorID, id uint, payload dto.DecisionRequest, ip string) (dto.OutpassResponse, error)
	HODDecide(ctx context.Context, hodID, id uint, payload dto.DecisionRequest, ip string) (dto.OutpassResponse, error)
	HODOverride(ctx context.Context, hodID, id uint, payload dto.OverrideRequest, ip string) (dto.OutpassResponse, error)
	Cancel(ctx context.Context, studentID, id uint, ip string) (dto.OutpassResponse, error)
	QRCode(ctx context.Context, studentID, id uint) (dto.QRResponse, error)
	Delete(ctx context.Context, id uint) error
	DeleteForStudent(ctx context.Context, studentID, id uint) error
	Advisees(ctx context.Context, advisorID uint) ([]dto.UserResponse, error)
	AdviseeHistory(ctx context.Context, advisorID, studentID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error)
}

type outpassService struct {
	outpasses      repository.OutpassRepository
	logs           repository.OutpassLogRepository
	users          repository.UserRepository
	issuer         QRTokenIssuer
	notifier       Notifier
	validator      *validator.Validate
	sanitizer      *bluemonday.Policy
	logger         zerolog.Logger
	maxAdvanceDays int
	now            func() time.Time
}

// NewOutpassService builds the workflow service.
func NewOutpassService(
	outpasses repository.OutpassRepository,
	logs repository.OutpassLogRepository,
	users repository.UserRepository,
	issuer QRTokenIssuer,
	notifier Notifier,
	validate *validator.Validate,
	maxAdvanceDays int,
	logger zerolog.Logger,
) OutpassService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = 30
	}
	return &outpassService{
		outpasses:      outpasses,
		logs:           logs,
		users:          users,
		issuer:         issuer,
		notifier:       notifier,
		validator:      validate,
		sanitizer:      bluemonday.StrictPolicy(),
		logger:         logger.With().Str("component", "outpass_service").Logger(),
		maxAdvanceDays: maxAdvanceDays,
		now:            time.Now,
	}
}

func (s *outpassService) Submit(ctx context.Context, studentID uint, payload dto.OutpassCreateRequest, ip string) (dto.OutpassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OutpassResponse{}, err
	}

	now := s.now()

	outDate, err := time.ParseInLocation("2006-01-02", payload.OutDate, now.Location())
	if err != nil {
		return dto.OutpassResponse{}, fmt.Errorf("parse out date: %w", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if outDate.Before(today) {
		return dto.OutpassResponse{}, ErrPastDate
	}
	if outDate.After(today.AddDate(0, 0, s.maxAdvanceDays)) {
		return dto.OutpassResponse{}, ErrTooFarAhead
	}
	if payload.ExpectedReturnTime <= payload.OutTime {
		return dto.OutpassResponse{}, ErrReturnBeforeOut
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return dto.OutpassResponse{}, fmt.Errorf("load student: %w", err)
	}

	advisor, err := s.users.ResolveAdvisor(ctx, student)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OutpassResponse{}, ErrNoAdvisorAvailable
		}

		return dto.OutpassResponse{}, err
	}

	outpass := models.Outpass{
		StudentID:          studentID,
		AdvisorID:          advisor.ID,
		OutDate:            outDate,
		OutTime:            payload.OutTime,
		ExpectedReturnTime: payload.ExpectedReturnTime,
		Reason:             s.clean(payload.Reason),
		Destination:        s.clean(payload.Destination),
		AdvisorStatus:      models.StatusPending,
		HODStatus:          models.StatusPending,
		FinalStatus:        models.FinalPending,
	}

	if student.DeptID != nil {
		if hod, err := s.users.ResolveHOD(ctx, *student.DeptID); err == nil {
			outpass.HODID = &hod.ID
		}
	}

	entry := &models.OutpassLog{
		ActorID:   studentID,
		Action:    models.ActionCreated,
		IPAddress: ip,
		Metadata: datatypes.JSONMap{
			"out_date":    payload.OutDate,
			"destination": outpass.Destination,
		},
	}

	if err := s.outpasses.Create(ctx, &outpass, entry); err != nil {
		return dto.OutpassResponse{}, err
	}

	observability.Transitions().WithLabelValues(models.ActionCreated).Inc()
	s.notifier.Notify(ctx, OutpassEvent{
		Kind:      "submitted",
		OutpassID: outpass.ID,
		StudentID: studentID,
		ActorID:   studentID,
		Status:    string(models.FinalPending),
		Message:   fmt.Sprintf("New outpass request from %s awaits review", student.FullName),
		At:        s.now(),
	})

	created, err := s.outpasses.GetByID(ctx, outpass.ID)
	if err != nil {
		return dto.NewOutpassResponse(outpass), nil
	}

	return dto.NewOutpassResponse(created), nil
}

func (s *outpassService) Get(ctx context.Context, id uint) (dto.OutpassResponse, error) {
	outpass, err := s.outpasses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OutpassResponse{}, ErrOutpassNotFound
		}

		return dto.OutpassResponse{}, err
	}

	return dto.NewOutpassResponse(outpass), nil
}

func (s *outpassService) GetForStudent(ctx context.Context, studentID, id uint) (dto.OutpassResponse, error) {
	response, err := s.Get(ctx, id)
	if err != nil {
		return dto.OutpassResponse{}, err
	}
	if response.Student.ID != studentID {
		return dto.OutpassResponse{}, ErrNotOwner
	}

	return response, nil
}

func (s *outpassService) List(ctx context.Context, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	return s.list(ctx, repository.OutpassFilter{}, query)
}

func (s *outpassService) ListForStudent(ctx context.Context, studentID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	return s.list(ctx, repository.OutpassFilter{StudentID: &studentID}, query)
}

func (s *outpassService) ListForAdvisor(ctx context.Context, advisorID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	return s.list(ctx, repository.OutpassFilter{AdvisorID: &advisorID}, query)
}

func (s *outpassService) ListForDepartment(ctx context.Context, deptID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	return s.list(ctx, repository.OutpassFilter{DeptID: &deptID}, query)
}

func (s *outpassService) list(ctx context.Context, filter repository.OutpassFilter, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	if query.Status != nil {
		status := models.FinalStatus(*query.Status)
		filter.FinalStatus = &status
	}
	if query.From != nil {
		if from, err := time.Parse("2006-01-02", *query.From); err == nil {
			filter.FromDate = &from
		}
	}
	if query.To != nil {
		if to, err := time.Parse("2006-01-02", *query.To); err == nil {
			filter.ToDate = &to
		}
	}
	filter.Limit = query.Limit

	outpasses, err := s.outpasses.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewOutpassResponseSlice(outpasses), nil
}

func (s *outpassService) History(ctx context.Context, id uint) ([]dto.OutpassLogResponse, error) {
	if _, err := s.outpasses.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutpassNotFound
		}

		return nil, err
	}

	entries, err := s.logs.List(ctx, repository.LogFilter{OutpassID: &id})
	if err != nil {
		return nil, err
	}

	return dto.NewOutpassLogResponseSlice(entries), nil
}

func (s *outpassService) AdvisorDecide(ctx context.Context, advisorID, id uint, payload dto.DecisionRequest, ip string) (dto.OutpassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OutpassResponse{}, err
	}

	approve := payload.Action == "approve"
	if !approve && strings.TrimSpace(payload.Remarks) == "" {
		return dto.OutpassResponse{}, ErrRemarksRequired
	}

	action := models.ActionAdvisorApproved
	if !approve {
		action = models.ActionAdvisorRejected
	}
	remarks := s.clean(payload.Remarks)
	now := s.now()

	outpass, err := s.outpasses.Transition(ctx, id, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if outpass.AdvisorID != advisorID {
			return nil, ErrNotAssigned
		}
		if outpass.AdvisorStatus != models.StatusPending {
			return nil, ErrAlreadyProcessed
		}
		if outpass.HODStatus != models.StatusPending {
			return nil, ErrInvalidState
		}

		if approve {
			outpass.AdvisorStatus = models.StatusApproved
		} else {
			outpass.AdvisorStatus = models.StatusRejected
		}
		outpass.AdvisorRemarks = remarks
		outpass.AdvisorActionTime = &now

		return &models.OutpassLog{
			ActorID:   advisorID,
			Action:    action,
			Remarks:   remarks,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.OutpassResponse{}, s.mapTransitionErr(err)
	}

	observability.Transitions().WithLabelValues(action).Inc()
	s.notifier.Notify(ctx, OutpassEvent{
		Kind:      "advisor_decision",
		OutpassID: outpass.ID,
		StudentID: outpass.StudentID,
		ActorID:   advisorID,
		Status:    string(outpass.FinalStatus),
		Message:   decisionMessage("Advisor", approve, remarks),
		At:        now,
	})

	return dto.NewOutpassResponse(outpass), nil
}

func (s *outpassService) HODDecide(ctx context.Context, hodID, id uint, payload dto.DecisionRequest, ip string) (dto.OutpassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OutpassResponse{}, err
	}

	approve := payload.Action == "approve"
	if !approve && strings.TrimSpace(payload.Remarks) == "" {
		return dto.OutpassResponse{}, ErrRemarksRequired
	}

	action := models.ActionHODApproved
	if !approve {
		action = models.ActionHODRejected
	}
	remarks := s.clean(payload.Remarks)
	now := s.now()

	if err := s.hodScope(ctx, hodID, id); err != nil {
		return dto.OutpassResponse{}, err
	}

	outpass, err := s.outpasses.Transition(ctx, id, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if outpass.HODStatus != models.StatusPending {
			return nil, ErrAlreadyProcessed
		}
		if outpass.AdvisorStatus == models.StatusRejected {
			return nil, ErrInvalidState
		}
		if approve && outpass.AdvisorStatus != models.StatusApproved {
			return nil, ErrAdvisorNotApproved
		}

		if approve {
			outpass.HODStatus = models.StatusApproved
		} else {
			outpass.HODStatus = models.StatusRejected
		}
		outpass.HODRemarks = remarks
		outpass.HODActionTime = &now
		outpass.HODID = &hodID

		if approve {
			if err := s.attachQR(outpass, now); err != nil {
				return nil, err
			}
		}

		return &models.OutpassLog{
			ActorID:   hodID,
			Action:    action,
			Remarks:   remarks,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.OutpassResponse{}, s.mapTransitionErr(err)
	}

	observability.Transitions().WithLabelValues(action).Inc()
	s.notifier.Notify(ctx, OutpassEvent{
		Kind:      "hod_decision",
		OutpassID: outpass.ID,
		StudentID: outpass.StudentID,
		ActorID:   hodID,
		Status:    string(outpass.FinalStatus),
		Message:   decisionMessage("HOD", approve, remarks),
		At:        now,
	})

	return dto.NewOutpassResponse(outpass), nil
}

// HODOverride approves the request in one step, skipping an advisor stage
// that is still pending. A skipped stage is stamped with a synthetic remark
// so the audit trail shows who actually decided.
func (s *outpassService) HODOverride(ctx context.Context, hodID, id uint, payload dto.OverrideRequest, ip string) (dto.OutpassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OutpassResponse{}, err
	}

	remarks := s.clean(payload.Remarks)
	now := s.now()

	if err := s.hodScope(ctx, hodID, id); err != nil {
		return dto.OutpassResponse{}, err
	}

	outpass, err := s.outpasses.Transition(ctx, id, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if outpass.HODStatus != models.StatusPending {
			return nil, ErrAlreadyProcessed
		}
		if outpass.AdvisorStatus == models.StatusRejected {
			return nil, ErrInvalidState
		}

		if outpass.AdvisorStatus == models.StatusPending {
			outpass.AdvisorStatus = models.StatusApproved
			outpass.AdvisorRemarks = overrideAdvisorRemark
			outpass.AdvisorActionTime = &now
		}
		outpass.HODStatus = models.StatusApproved
		outpass.HODRemarks = remarks
		outpass.HODActionTime = &now
		outpass.HODID = &hodID

		if err := s.attachQR(outpass, now); err != nil {
			return nil, err
		}

		return &models.OutpassLog{
			ActorID:   hodID,
			Action:    models.ActionHODApproved,
			Remarks:   "OVERRIDE: " + remarks,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.OutpassResponse{}, s.mapTransitionErr(err)
	}

	observability.Transitions().WithLabelValues(models.ActionHODApproved).Inc()
	s.notifier.Notify(ctx, OutpassEvent{
		Kind:      "hod_override",
		OutpassID: outpass.ID,
		StudentID: outpass.StudentID,
		ActorID:   hodID,
		Status:    string(outpass.FinalStatus),
		Message:   "Outpass approved directly by HOD",
		At:        now,
	})

	return dto.NewOutpassResponse(outpass), nil
}

func (s *outpassService) Cancel(ctx context.Context, studentID, id uint, ip string) (dto.OutpassResponse, error) {
	now := s.now()

	outpass, err := s.outpasses.Transition(ctx, id, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if outpass.StudentID != studentID {
			return nil, ErrNotOwner
		}
		if outpass.FinalStatus != models.FinalPending {
			return nil, ErrInvalidState
		}

		if outpass.AdvisorStatus == models.StatusPending {
			outpass.AdvisorStatus = models.StatusRejected
			outpass.AdvisorRemarks = cancelledRemark
			outpass.AdvisorActionTime = &now
		}
		if outpass.HODStatus == models.StatusPending {
			outpass.HODStatus = models.StatusRejected
			outpass.HODRemarks = cancelledRemark
			outpass.HODActionTime = &now
		}

		return &models.OutpassLog{
			ActorID:   studentID,
			Action:    models.ActionCancelled,
			Remarks:   cancelledRemark,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.OutpassResponse{}, s.mapTransitionErr(err)
	}

	observability.Transitions().WithLabelValues(models.ActionCancelled).Inc()

	return dto.NewOutpassResponse(outpass), nil
}

func (s *outpassService) QRCode(ctx context.Context, studentID, id uint) (dto.QRResponse, error) {
	outpass, err := s.outpasses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QRResponse{}, ErrOutpassNotFound
		}

		return dto.QRResponse{}, err
	}

	if outpass.StudentID != studentID {
		return dto.QRResponse{}, ErrNotOwner
	}
	if outpass.QRToken == nil || outpass.IsQRUsed || outpass.FinalStatus != models.FinalApproved {
		return dto.QRResponse{}, ErrQRNotAvailable
	}
	if outpass.QRExpired(s.now()) {
		return dto.QRResponse{}, ErrQRNotAvailable
	}

	image, err := qrimage.DataURI(*outpass.QRToken)
	if err != nil {
		return dto.QRResponse{}, err
	}

	return dto.QRResponse{
		OutpassID: outpass.ID,
		Token:     *outpass.QRToken,
		Image:     image,
		ExpiresAt: *outpass.QRExpiresAt,
	}, nil
}

func (s *outpassService) Delete(ctx context.Context, id uint) error {
	if err := s.outpasses.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOutpassNotFound
		}

		return err
	}

	return nil
}

// DeleteForStudent removes one of the student's own requests together with
// its audit trail. Requests with a recorded gate movement stay on file.
func (s *outpassService) DeleteForStudent(ctx context.Context, studentID, id uint) error {
	outpass, err := s.outpasses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOutpassNotFound
		}

		return err
	}

	if outpass.StudentID != studentID {
		return ErrNotOwner
	}
	if outpass.ActualExitTime != nil {
		return ErrInvalidState
	}

	return s.Delete(ctx, id)
}

// Advisees lists the active students assigned to an advisor.
func (s *outpassService) Advisees(ctx context.Context, advisorID uint) ([]dto.UserResponse, error) {
	role := models.RoleStudent
	active := true
	students, err := s.users.List(ctx, repository.UserFilter{Role: &role, AdvisorID: &advisorID, IsActive: &active})
	if err != nil {
		return nil, err
	}

	return dto.NewUserResponseSlice(students), nil
}

// AdviseeHistory returns the outpass history for a student the advisor is
// responsible for.
func (s *outpassService) AdviseeHistory(ctx context.Context, advisorID, studentID uint, query dto.OutpassListQuery) ([]dto.OutpassResponse, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAssigned
		}

		return nil, err
	}
	if student.AdvisorID == nil || *student.AdvisorID != advisorID {
		return nil, ErrNotAssigned
	}

	return s.list(ctx, repository.OutpassFilter{StudentID: &studentID}, query)
}

// hodScope refuses head-of-department actions on requests raised outside the
// actor's own department.
func (s *outpassService) hodScope(ctx context.Context, hodID, id uint) error {
	hod, err := s.users.GetByID(ctx, hodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAssigned
		}

		return err
	}

	outpass, err := s.outpasses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOutpassNotFound
		}

		return err
	}

	if hod.DeptID == nil || outpass.Student == nil || outpass.Student.DeptID == nil ||
		*outpass.Student.DeptID != *hod.DeptID {
		return ErrNotAssigned
	}

	return nil
}

// attachQR mints the single-use gate token once both stages are approved.
func (s *outpassService) attachQR(outpass *models.Outpass, now time.Time) error {
	token, expiresAt, err := s.issuer.Issue(outpass.ID, now)
	if err != nil {
		return err
	}

	outpass.QRToken = &token
	outpass.QRGeneratedAt = &now
	outpass.QRExpiresAt = &expiresAt
	outpass.IsQRUsed = false

	return nil
}

func (s *outpassService) mapTransitionErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOutpassNotFound
	}

	return err
}

func (s *outpassService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func decisionMessage(stage string, approved bool, remarks string) string {
	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	if remarks == "" {
		return fmt.Sprintf("%s %s the outpass request", stage, verdict)
	}

	return fmt.Sprintf("%s %s the outpass request: %s", stage, verdict, remarks)
}
