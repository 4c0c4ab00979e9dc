package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
)

// StatusBreakdown counts outpasses per derived final status.
type StatusBreakdown struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Used     int64 `json:"used"`
}

// MonthlyCount is one bucket of the usage trend.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// ReasonCount ranks the most common leave reasons.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// ReportRepository aggregates outpass data for dashboards and exports.
type ReportRepository interface {
	StatusCounts(ctx context.Context, filter OutpassFilter) (StatusBreakdown, error)
	MonthlyTrend(ctx context.Context, deptID *uint, months int, now time.Time) ([]MonthlyCount, error)
	TopReasons(ctx context.Context, deptID *uint, limit int) ([]ReasonCount, error)
	MisuseCount(ctx context.Context, from, to *time.Time) (int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository instantiates a GORM-backed repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) scoped(ctx context.Context, filter OutpassFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Outpass{})

	if filter.StudentID != nil {
		query = query.Where("outpasses.student_id = ?", *filter.StudentID)
	}
	if filter.AdvisorID != nil {
		query = query.Where("outpasses.advisor_id = ?", *filter.AdvisorID)
	}
	if filter.HODID != nil {
		query = query.Where("outpasses.hod_id = ?", *filter.HODID)
	}
	if filter.DeptID != nil {
		query = query.Joins("JOIN users ON users.id = outpasses.student_id").
			Where("users.dept_id = ?", *filter.DeptID)
	}
	if filter.FromDate != nil {
		query = query.Where("outpasses.out_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("outpasses.out_date <= ?", *filter.ToDate)
	}

	return query
}

func (r *reportRepository) StatusCounts(ctx context.Context, filter OutpassFilter) (StatusBreakdown, error) {
	type row struct {
		FinalStatus string
		Count       int64
	}

	var rows []row
	err := r.scoped(ctx, filter).
		Select("outpasses.final_status, COUNT(*) AS count").
		Group("outpasses.final_status").
		Scan(&rows).Error
	if err != nil {
		return StatusBreakdown{}, err
	}

	var breakdown StatusBreakdown
	for _, row := range rows {
		breakdown.Total += row.Count
		switch models.FinalStatus(row.FinalStatus) {
		case models.FinalPending:
			breakdown.Pending = row.Count
		case models.FinalApproved:
			breakdown.Approved = row.Count
		case models.FinalRejected:
			breakdown.Rejected = row.Count
		case models.FinalUsed:
			breakdown.Used = row.Count
		}
	}

	return breakdown, nil
}

// MonthlyTrend buckets outpasses by out month over the trailing window. The
// bucketing happens in Go so the query stays portable across dialects.
func (r *reportRepository) MonthlyTrend(ctx context.Context, deptID *uint, months int, now time.Time) ([]MonthlyCount, error) {
	if months <= 0 {
		months = 6
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)

	query := r.scoped(ctx, OutpassFilter{DeptID: deptID, FromDate: &start})

	var dates []time.Time
	if err := query.Pluck("outpasses.out_date", &dates).Error; err != nil {
		return nil, err
	}

	buckets := make(map[string]int64, months)
	for i := 0; i < months; i++ {
		buckets[start.AddDate(0, i, 0).Format("2006-01")] = 0
	}
	for _, d := range dates {
		key := d.Format("2006-01")
		if _, ok := buckets[key]; ok {
			buckets[key]++
		}
	}

	trend := make([]MonthlyCount, 0, len(buckets))
	for month, count := range buckets {
		trend = append(trend, MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Month < trend[j].Month })

	return trend, nil
}

func (r *reportRepository) TopReasons(ctx context.Context, deptID *uint, limit int) ([]ReasonCount, error) {
	if limit <= 0 {
		limit = 5
	}

	var reasons []string
	if err := r.scoped(ctx, OutpassFilter{DeptID: deptID}).Pluck("outpasses.reason", &reasons).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, reason := range reasons {
		key := strings.ToLower(strings.TrimSpace(reason))
		if key == "" {
			continue
		}
		counts[key]++
	}

	ranked := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		ranked = append(ranked, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked, nil
}

// MisuseCount totals expired and reuse scan attempts recorded in the audit
// trail.
func (r *reportRepository) MisuseCount(ctx context.Context, from, to *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OutpassLog{}).
		Where("action IN ?", []string{models.ActionExpired, models.ActionReused})

	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
