package dto

import (
	"time"

	"github.com/campuspass/outpass-api/internal/repository"
)

// ReportQuery describes query string filters for dashboard reports.
type ReportQuery struct {
	DeptID *uint   `query:"dept_id" validate:"omitempty,gt=0"`
	From   *string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To     *string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Months int     `query:"months" validate:"omitempty,gte=1,lte=24"`
}

// ReportResponse aggregates outpass activity for admin dashboards.
type ReportResponse struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Statuses    repository.StatusBreakdown  `json:"statuses"`
	Trend       []repository.MonthlyCount   `json:"trend"`
	TopReasons  []repository.ReasonCount    `json:"top_reasons"`
	MisuseCount int64                       `json:"misuse_count"`
	UsersByRole map[string]int64            `json:"users_by_role"`
}
