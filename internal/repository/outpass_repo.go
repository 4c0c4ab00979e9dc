package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuspass/outpass-api/internal/models"
)

// OutpassFilter narrows outpass queries.
type OutpassFilter struct {
	StudentID     *uint
	AdvisorID     *uint
	HODID         *uint
	DeptID        *uint
	AdvisorStatus *models.Status
	HODStatus     *models.Status
	FinalStatus   *models.FinalStatus
	FromDate      *time.Time
	ToDate        *time.Time
	CurrentlyOut  bool
	Limit         int
}

// TransitionFunc validates preconditions against the locked row, mutates it,
// and returns the audit entry to append in the same transaction. Returning an
// error rolls the whole transition back.
type TransitionFunc func(outpass *models.Outpass) (*models.OutpassLog, error)

// OutpassRepository defines persistence operations for outpasses. State
// transitions run under a row-level exclusive lock so that of two concurrent
// decisions on the same outpass exactly one can win.
type OutpassRepository interface {
	Create(ctx context.Context, outpass *models.Outpass, entry *models.OutpassLog) error
	GetByID(ctx context.Context, id uint) (models.Outpass, error)
	GetByToken(ctx context.Context, token string) (models.Outpass, error)
	List(ctx context.Context, filter OutpassFilter) ([]models.Outpass, error)
	Delete(ctx context.Context, id uint) error
	Transition(ctx context.Context, id uint, apply TransitionFunc) (models.Outpass, error)
	TransitionByToken(ctx context.Context, token string, apply TransitionFunc) (models.Outpass, error)
}

type outpassRepository struct {
	db *gorm.DB
}

// NewOutpassRepository instantiates a GORM-backed repository.
func NewOutpassRepository(db *gorm.DB) OutpassRepository {
	return &outpassRepository{db: db}
}

func (r *outpassRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Outpass{}).
		Preload("Student").
		Preload("Student.Department").
		Preload("Advisor").
		Preload("HOD")
}

func (r *outpassRepository) Create(ctx context.Context, outpass *models.Outpass, entry *models.OutpassLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(outpass).Error; err != nil {
			return err
		}
		if entry != nil {
			entry.OutpassID = outpass.ID
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *outpassRepository) GetByID(ctx context.Context, id uint) (models.Outpass, error) {
	var outpass models.Outpass
	if err := r.baseQuery(ctx).First(&outpass, id).Error; err != nil {
		return models.Outpass{}, err
	}

	return outpass, nil
}

func (r *outpassRepository) GetByToken(ctx context.Context, token string) (models.Outpass, error) {
	var outpass models.Outpass
	if err := r.baseQuery(ctx).Where("qr_token = ?", token).First(&outpass).Error; err != nil {
		return models.Outpass{}, err
	}

	return outpass, nil
}

func (r *outpassRepository) List(ctx context.Context, filter OutpassFilter) ([]models.Outpass, error) {
	query := r.baseQuery(ctx)

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
	if filter.AdvisorStatus != nil {
		query = query.Where("outpasses.advisor_status = ?", *filter.AdvisorStatus)
	}
	if filter.HODStatus != nil {
		query = query.Where("outpasses.hod_status = ?", *filter.HODStatus)
	}
	if filter.FinalStatus != nil {
		query = query.Where("outpasses.final_status = ?", *filter.FinalStatus)
	}
	if filter.FromDate != nil {
		query = query.Where("outpasses.out_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("outpasses.out_date <= ?", *filter.ToDate)
	}
	if filter.CurrentlyOut {
		query = query.Where("outpasses.actual_exit_time IS NOT NULL AND outpasses.actual_entry_time IS NULL")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var outpasses []models.Outpass
	if err := query.Order("outpasses.created_at DESC").Find(&outpasses).Error; err != nil {
		return nil, err
	}

	return outpasses, nil
}

func (r *outpassRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("outpass_id = ?", id).Delete(&models.OutpassLog{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Outpass{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *outpassRepository) Transition(ctx context.Context, id uint, apply TransitionFunc) (models.Outpass, error) {
	return r.transition(ctx, func(tx *gorm.DB, outpass *models.Outpass) error {
		return lockQuery(tx).First(outpass, id).Error
	}, apply)
}

func (r *outpassRepository) TransitionByToken(ctx context.Context, token string, apply TransitionFunc) (models.Outpass, error) {
	return r.transition(ctx, func(tx *gorm.DB, outpass *models.Outpass) error {
		return lockQuery(tx).Where("qr_token = ?", token).First(outpass).Error
	}, apply)
}

// transition wraps the read-check-write sequence in a single transaction.
// Preconditions are evaluated by apply against the locked row, and the audit
// entry commits together with the status mutation: a crash between them can
// never leave one without the other.
func (r *outpassRepository) transition(ctx context.Context, load func(*gorm.DB, *models.Outpass) error, apply TransitionFunc) (models.Outpass, error) {
	var result models.Outpass

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outpass models.Outpass
		if err := load(tx, &outpass); err != nil {
			return err
		}

		entry, err := apply(&outpass)
		if err != nil {
			return err
		}

		outpass.RefreshFinalStatus()

		if err := tx.Save(&outpass).Error; err != nil {
			return err
		}

		if entry != nil {
			entry.OutpassID = outpass.ID
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}

		result = outpass
		return nil
	})
	if err != nil {
		return models.Outpass{}, err
	}

	reloaded, err := r.GetByID(ctx, result.ID)
	if err != nil {
		return result, nil
	}

	return reloaded, nil
}

// lockQuery takes a row-level exclusive lock on supported dialects. SQLite
// (used in tests) serialises writers on its own and rejects FOR UPDATE.
func lockQuery(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
