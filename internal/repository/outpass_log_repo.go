package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
)

// LogFilter narrows audit log queries.
type LogFilter struct {
	OutpassID *uint
	ActorID   *uint
	Action    *string
	Actions   []string
	From      *time.Time
	To        *time.Time
	Limit     int
	Newest    bool
}

// OutpassLogRepository reads the append-only audit trail. Writes happen
// inside outpass transitions so that a log entry always commits together with
// the status change it records.
type OutpassLogRepository interface {
	Append(ctx context.Context, entry *models.OutpassLog) error
	List(ctx context.Context, filter LogFilter) ([]models.OutpassLog, error)
	CountByAction(ctx context.Context, actions []string, from, to *time.Time) (int64, error)
}

type outpassLogRepository struct {
	db *gorm.DB
}

// NewOutpassLogRepository instantiates a GORM-backed repository.
func NewOutpassLogRepository(db *gorm.DB) OutpassLogRepository {
	return &outpassLogRepository{db: db}
}

func (r *outpassLogRepository) Append(ctx context.Context, entry *models.OutpassLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *outpassLogRepository) List(ctx context.Context, filter LogFilter) ([]models.OutpassLog, error) {
	query := r.db.WithContext(ctx).Model(&models.OutpassLog{}).Preload("Actor")

	if filter.OutpassID != nil {
		query = query.Where("outpass_id = ?", *filter.OutpassID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if len(filter.Actions) > 0 {
		query = query.Where("action IN ?", filter.Actions)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	order := "created_at ASC, id ASC"
	if filter.Newest {
		order = "created_at DESC, id DESC"
	}

	var entries []models.OutpassLog
	if err := query.Order(order).Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *outpassLogRepository) CountByAction(ctx context.Context, actions []string, from, to *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OutpassLog{}).Where("action IN ?", actions)

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
