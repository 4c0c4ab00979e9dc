package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
	"github.com/campuspass/outpass-api/internal/observability"
	"github.com/campuspass/outpass-api/internal/repository"
)

// Gate scan errors, ordered by check precedence.
var (
	ErrTokenNotFound   = errors.New("qr token not recognised")
	ErrQRAlreadyUsed   = errors.New("qr code has already been used")
	ErrQRExpired       = errors.New("qr code has expired")
	ErrNotApproved     = errors.New("outpass is not approved")
	ErrFutureDated     = errors.New("outpass is for a future date")
	ErrNotExited       = errors.New("no exit has been recorded for this outpass")
	ErrAlreadyReturned = errors.New("entry has already been recorded")
)

// Scan directions reported to security clients.
const (
	DirectionExit  = "exit"
	DirectionEntry = "entry"
)

// ScanObserver receives successful gate scans, for live feeds.
type ScanObserver interface {
	ScanRecorded(scan dto.ScanResponse)
}

// ScanService validates QR tokens at the gate and records exit and entry
// movements.
type ScanService interface {
	Verify(ctx context.Context, token string) (dto.OutpassResponse, error)
	RecordExit(ctx context.Context, securityID uint, token, ip string) (dto.ScanResponse, error)
	RecordEntry(ctx context.Context, securityID uint, token, ip string) (dto.ScanResponse, error)
	RecordEntryByID(ctx context.Context, securityID, outpassID uint, ip string) (dto.ScanResponse, error)
	RecentActivity(ctx context.Context, limit int) ([]dto.OutpassLogResponse, error)
	StudentsOut(ctx context.Context) ([]dto.OutpassResponse, error)
	Summary(ctx context.Context) (dto.GateSummary, error)
}

type scanService struct {
	outpasses repository.OutpassRepository
	logs      repository.OutpassLogRepository
	notifier  Notifier
	observer  ScanObserver
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewScanService builds the gate scan service. The observer may be nil when
// no live feed is attached.
func NewScanService(
	outpasses repository.OutpassRepository,
	logs repository.OutpassLogRepository,
	notifier Notifier,
	observer ScanObserver,
	logger zerolog.Logger,
) ScanService {
	return &scanService{
		outpasses: outpasses,
		logs:      logs,
		notifier:  notifier,
		observer:  observer,
		logger:    logger.With().Str("component", "scan_service").Logger(),
		tracer:    otel.Tracer("github.com/campuspass/outpass-api/internal/service/scan"),
		now:       time.Now,
	}
}

// Verify previews a token without consuming it. The checks run in the same
// order the gate applies them, so the reported failure matches what a real
// scan would do.
func (s *scanService) Verify(ctx context.Context, token string) (dto.OutpassResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.verify")
	defer span.End()

	outpass, err := s.outpasses.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.QRScans().WithLabelValues("not_found").Inc()
			return dto.OutpassResponse{}, ErrTokenNotFound
		}

		return dto.OutpassResponse{}, err
	}

	span.SetAttributes(attribute.Int64("outpass.id", int64(outpass.ID)))

	if err := s.exitPreconditions(outpass, s.now()); err != nil {
		return dto.OutpassResponse{}, err
	}

	observability.QRScans().WithLabelValues("verified").Inc()

	return dto.NewOutpassResponse(outpass), nil
}

func (s *scanService) RecordExit(ctx context.Context, securityID uint, token, ip string) (dto.ScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.exit")
	defer span.End()

	now := s.now()

	outpass, err := s.outpasses.TransitionByToken(ctx, token, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if err := s.exitPreconditions(*outpass, now); err != nil {
			return nil, err
		}

		outpass.IsQRUsed = true
		outpass.ActualExitTime = &now
		outpass.ExitSecurityID = &securityID

		return &models.OutpassLog{
			ActorID:   securityID,
			Action:    models.ActionExitScanned,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.ScanResponse{}, s.recordFailure(ctx, span, securityID, token, ip, err)
	}

	span.SetAttributes(attribute.Int64("outpass.id", int64(outpass.ID)))
	observability.QRScans().WithLabelValues("exit").Inc()

	scan := dto.NewScanResponse(DirectionExit, now, outpass)
	s.publishScan(ctx, scan, outpass, securityID, "Student exited campus")

	return scan, nil
}

func (s *scanService) RecordEntry(ctx context.Context, securityID uint, token, ip string) (dto.ScanResponse, error) {
	return s.recordEntry(ctx, securityID, token, ip, func(ctx context.Context, apply repository.TransitionFunc) (models.Outpass, error) {
		return s.outpasses.TransitionByToken(ctx, token, apply)
	})
}

// RecordEntryByID records a return by outpass id for gates where the consumed
// token is no longer at hand.
func (s *scanService) RecordEntryByID(ctx context.Context, securityID, outpassID uint, ip string) (dto.ScanResponse, error) {
	return s.recordEntry(ctx, securityID, "", ip, func(ctx context.Context, apply repository.TransitionFunc) (models.Outpass, error) {
		return s.outpasses.Transition(ctx, outpassID, apply)
	})
}

func (s *scanService) recordEntry(ctx context.Context, securityID uint, token, ip string, run func(context.Context, repository.TransitionFunc) (models.Outpass, error)) (dto.ScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.entry")
	defer span.End()

	now := s.now()

	outpass, err := run(ctx, func(outpass *models.Outpass) (*models.OutpassLog, error) {
		if outpass.ActualEntryTime != nil {
			return nil, ErrAlreadyReturned
		}
		if outpass.ActualExitTime == nil {
			return nil, ErrNotExited
		}

		outpass.ActualEntryTime = &now
		outpass.EntrySecurityID = &securityID

		return &models.OutpassLog{
			ActorID:   securityID,
			Action:    models.ActionEntryScanned,
			IPAddress: ip,
		}, nil
	})
	if err != nil {
		return dto.ScanResponse{}, s.recordFailure(ctx, span, securityID, token, ip, err)
	}

	span.SetAttributes(attribute.Int64("outpass.id", int64(outpass.ID)))
	observability.QRScans().WithLabelValues("entry").Inc()

	scan := dto.NewScanResponse(DirectionEntry, now, outpass)
	s.publishScan(ctx, scan, outpass, securityID, "Student returned to campus")

	return scan, nil
}

// RecentActivity returns the latest gate scans for the security dashboard.
func (s *scanService) RecentActivity(ctx context.Context, limit int) ([]dto.OutpassLogResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := s.logs.List(ctx, repository.LogFilter{
		Actions: []string{models.ActionExitScanned, models.ActionEntryScanned},
		Limit:   limit,
		Newest:  true,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewOutpassLogResponseSlice(entries), nil
}

// StudentsOut lists outpasses with a recorded exit but no return yet.
func (s *scanService) StudentsOut(ctx context.Context) ([]dto.OutpassResponse, error) {
	outpasses, err := s.outpasses.List(ctx, repository.OutpassFilter{CurrentlyOut: true})
	if err != nil {
		return nil, err
	}

	return dto.NewOutpassResponseSlice(outpasses), nil
}

// Summary aggregates today's gate movement counts.
func (s *scanService) Summary(ctx context.Context) (dto.GateSummary, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	out, err := s.outpasses.List(ctx, repository.OutpassFilter{CurrentlyOut: true})
	if err != nil {
		return dto.GateSummary{}, err
	}

	exits, err := s.logs.CountByAction(ctx, []string{models.ActionExitScanned}, &startOfDay, nil)
	if err != nil {
		return dto.GateSummary{}, err
	}

	entries, err := s.logs.CountByAction(ctx, []string{models.ActionEntryScanned}, &startOfDay, nil)
	if err != nil {
		return dto.GateSummary{}, err
	}

	misuse, err := s.logs.CountByAction(ctx, []string{models.ActionExpired, models.ActionReused}, &startOfDay, nil)
	if err != nil {
		return dto.GateSummary{}, err
	}

	return dto.GateSummary{
		StudentsOut:  int64(len(out)),
		ExitsToday:   exits,
		EntriesToday: entries,
		MisuseToday:  misuse,
	}, nil
}

// exitPreconditions enforces the gate checks in order: unknown token first,
// then reuse, then expiry, then approval, then the out date itself.
func (s *scanService) exitPreconditions(outpass models.Outpass, now time.Time) error {
	switch {
	case outpass.IsQRUsed:
		return ErrQRAlreadyUsed
	case outpass.QRExpired(now):
		return ErrQRExpired
	case outpass.FinalStatus != models.FinalApproved:
		return ErrNotApproved
	case outpass.FutureDated(now):
		return ErrFutureDated
	}

	return nil
}

// recordFailure classifies a failed scan, appends a misuse entry for reuse
// and expiry attempts, and counts the outcome. The misuse entry is written
// outside the rolled-back transition: it records an attempt, not a state
// change.
func (s *scanService) recordFailure(ctx context.Context, span trace.Span, securityID uint, token, ip string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrTokenNotFound
	}

	outcome := "error"
	misuse := ""
	switch {
	case errors.Is(err, ErrTokenNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrQRAlreadyUsed):
		outcome = "reused"
		misuse = models.ActionReused
	case errors.Is(err, ErrQRExpired):
		outcome = "expired"
		misuse = models.ActionExpired
	case errors.Is(err, ErrNotApproved):
		outcome = "not_approved"
	case errors.Is(err, ErrFutureDated):
		outcome = "future_dated"
	case errors.Is(err, ErrNotExited):
		outcome = "no_exit"
	case errors.Is(err, ErrAlreadyReturned):
		outcome = "already_returned"
	}

	span.SetAttributes(attribute.String("scan.outcome", outcome))
	observability.QRScans().WithLabelValues(outcome).Inc()

	if misuse != "" {
		if outpass, lookupErr := s.outpasses.GetByToken(ctx, token); lookupErr == nil {
			entry := &models.OutpassLog{
				OutpassID: outpass.ID,
				ActorID:   securityID,
				Action:    misuse,
				Remarks:   err.Error(),
				IPAddress: ip,
			}
			if appendErr := s.logs.Append(ctx, entry); appendErr != nil {
				s.logger.Warn().Err(appendErr).Uint("outpass_id", outpass.ID).Msg("record misuse entry")
			}
		}
	}

	return err
}

func (s *scanService) publishScan(ctx context.Context, scan dto.ScanResponse, outpass models.Outpass, securityID uint, message string) {
	if s.observer != nil {
		s.observer.ScanRecorded(scan)
	}

	s.notifier.Notify(ctx, OutpassEvent{
		Kind:      "gate_" + scan.Direction,
		OutpassID: outpass.ID,
		StudentID: outpass.StudentID,
		ActorID:   securityID,
		Status:    string(outpass.FinalStatus),
		Message:   message,
		At:        scan.ScannedAt,
	})
}
