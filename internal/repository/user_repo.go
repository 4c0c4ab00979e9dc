package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
)

// UserFilter narrows user queries.
type UserFilter struct {
	Role      *string
	DeptID    *uint
	AdvisorID *uint
	IsActive  *bool
	Search    string
	Limit     int
}

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	AssignAdvisor(ctx context.Context, studentIDs []uint, advisorID uint) (int64, error)
	ResolveAdvisor(ctx context.Context, student models.User) (models.User, error)
	ResolveHOD(ctx context.Context, deptID uint) (models.User, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Department").Preload("Advisor").First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Department").Where("email = ?", email).First(&user).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Department").Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Preload("Department").Preload("Advisor")

	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.DeptID != nil {
		query = query.Where("dept_id = ?", *filter.DeptID)
	}
	if filter.AdvisorID != nil {
		query = query.Where("advisor_id = ?", *filter.AdvisorID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("full_name LIKE ? OR email LIKE ? OR registration_no LIKE ? OR username LIKE ?", like, like, like, like)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var users []models.User
	if err := query.Order("full_name ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outpassIDs []uint
		if err := tx.Model(&models.Outpass{}).Where("student_id = ?", id).Pluck("id", &outpassIDs).Error; err != nil {
			return err
		}
		if len(outpassIDs) > 0 {
			if err := tx.Where("outpass_id IN ?", outpassIDs).Delete(&models.OutpassLog{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Outpass{}, outpassIDs).Error; err != nil {
				return err
			}
		}
		// Students advised by the removed staff member fall back to the
		// department HOD at request time, so only the pointer is cleared.
		if err := tx.Model(&models.User{}).Where("advisor_id = ?", id).Update("advisor_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *userRepository) AssignAdvisor(ctx context.Context, studentIDs []uint, advisorID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND role = ?", studentIDs, models.RoleStudent).
		Update("advisor_id", advisorID)

	return result.RowsAffected, result.Error
}

// ResolveAdvisor finds the staff member who reviews the student's requests.
// The assigned advisor wins; without one, any active staff member of the
// student's department steps in. With no active staff at all the submission
// fails rather than routing the advisor stage to someone else.
func (r *userRepository) ResolveAdvisor(ctx context.Context, student models.User) (models.User, error) {
	if student.AdvisorID != nil {
		advisor, err := r.GetByID(ctx, *student.AdvisorID)
		if err == nil && advisor.IsActive {
			return advisor, nil
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return models.User{}, err
		}
	}

	if student.DeptID == nil {
		return models.User{}, gorm.ErrRecordNotFound
	}

	var advisor models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND dept_id = ? AND is_active = ?", models.RoleStaff, *student.DeptID, true).
		Order("id ASC").
		First(&advisor).Error
	if err != nil {
		return models.User{}, err
	}

	return advisor, nil
}

func (r *userRepository) ResolveHOD(ctx context.Context, deptID uint) (models.User, error) {
	var hod models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND dept_id = ? AND is_active = ?", models.RoleHOD, deptID, true).
		Order("id ASC").
		First(&hod).Error
	if err != nil {
		return models.User{}, err
	}

	return hod, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Role  string
		Count int64
	}

	var rows []row
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Role] = r.Count
	}

	return counts, nil
}
