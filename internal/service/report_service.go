package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/repository"
)

// ReportService assembles dashboard aggregates and CSV exports. Overviews
// are cached in Redis because the admin dashboard polls them.
type ReportService interface {
	Overview(ctx context.Context, query dto.ReportQuery) (dto.ReportResponse, error)
	StudentSummary(ctx context.Context, studentID uint) (repository.StatusBreakdown, error)
	AdvisorSummary(ctx context.Context, advisorID uint) (repository.StatusBreakdown, error)
	DepartmentSummary(ctx context.Context, deptID uint) (repository.StatusBreakdown, error)
	ExportCSV(ctx context.Context, query dto.OutpassListQuery) ([]byte, error)
}

type reportService struct {
	reports   repository.ReportRepository
	users     repository.UserRepository
	outpasses OutpassService
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReportService builds the reporting service. A nil cache client disables
// caching.
func NewReportService(
	reports repository.ReportRepository,
	users repository.UserRepository,
	outpasses OutpassService,
	cache *redis.Client,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) ReportService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &reportService{
		reports:   reports,
		users:     users,
		outpasses: outpasses,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "report_service").Logger(),
		now:       time.Now,
	}
}

func (s *reportService) Overview(ctx context.Context, query dto.ReportQuery) (dto.ReportResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ReportResponse{}, err
	}

	cacheKey := s.cacheKey(query)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		return cached, nil
	}

	filter := repository.OutpassFilter{DeptID: query.DeptID}
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

	statuses, err := s.reports.StatusCounts(ctx, filter)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	trend, err := s.reports.MonthlyTrend(ctx, query.DeptID, query.Months, s.now())
	if err != nil {
		return dto.ReportResponse{}, err
	}

	reasons, err := s.reports.TopReasons(ctx, query.DeptID, 5)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	misuse, err := s.reports.MisuseCount(ctx, filter.FromDate, filter.ToDate)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	report := dto.ReportResponse{
		GeneratedAt: s.now(),
		Statuses:    statuses,
		Trend:       trend,
		TopReasons:  reasons,
		MisuseCount: misuse,
		UsersByRole: byRole,
	}

	s.toCache(ctx, cacheKey, report)

	return report, nil
}

func (s *reportService) StudentSummary(ctx context.Context, studentID uint) (repository.StatusBreakdown, error) {
	return s.reports.StatusCounts(ctx, repository.OutpassFilter{StudentID: &studentID})
}

func (s *reportService) AdvisorSummary(ctx context.Context, advisorID uint) (repository.StatusBreakdown, error) {
	return s.reports.StatusCounts(ctx, repository.OutpassFilter{AdvisorID: &advisorID})
}

func (s *reportService) DepartmentSummary(ctx context.Context, deptID uint) (repository.StatusBreakdown, error) {
	return s.reports.StatusCounts(ctx, repository.OutpassFilter{DeptID: &deptID})
}

// ExportCSV renders the filtered outpass list for offline record keeping.
func (s *reportService) ExportCSV(ctx context.Context, query dto.OutpassListQuery) ([]byte, error) {
	outpasses, err := s.outpasses.List(ctx, query)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"id", "student", "registration_no", "department", "out_date", "out_time",
		"expected_return_time", "reason", "destination", "advisor_status",
		"hod_status", "final_status", "exit_time", "entry_time",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, outpass := range outpasses {
		record := []string{
			fmt.Sprintf("%d", outpass.ID),
			outpass.Student.FullName,
			outpass.RegistrationNo,
			outpass.Department,
			outpass.OutDate,
			outpass.OutTime,
			outpass.ExpectedReturnTime,
			outpass.Reason,
			outpass.Destination,
			outpass.AdvisorStatus,
			outpass.HODStatus,
			outpass.FinalStatus,
			formatTimePtr(outpass.ActualExitTime),
			formatTimePtr(outpass.ActualEntryTime),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s *reportService) cacheKey(query dto.ReportQuery) string {
	key := "outpass:report:overview"
	if query.DeptID != nil {
		key += fmt.Sprintf(":dept:%d", *query.DeptID)
	}
	if query.From != nil {
		key += ":from:" + *query.From
	}
	if query.To != nil {
		key += ":to:" + *query.To
	}
	if query.Months > 0 {
		key += fmt.Sprintf(":months:%d", query.Months)
	}

	return key
}

func (s *reportService) fromCache(ctx context.Context, key string) (dto.ReportResponse, bool) {
	if s.cache == nil {
		return dto.ReportResponse{}, false
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return dto.ReportResponse{}, false
	}

	var report dto.ReportResponse
	if err := json.Unmarshal(raw, &report); err != nil {
		return dto.ReportResponse{}, false
	}

	return report, true
}

func (s *reportService) toCache(ctx context.Context, key string, report dto.ReportResponse) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache report")
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339)
}
