package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
)

// ErrDepartmentInUse is returned when deleting a department that still has
// users assigned to it.
var ErrDepartmentInUse = errors.New("department still has users assigned")

// DepartmentRepository defines persistence operations for departments.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *models.Department) error
	GetByID(ctx context.Context, id uint) (models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	Update(ctx context.Context, dept *models.Department) error
	Delete(ctx context.Context, id uint) error
}

type departmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository instantiates a GORM-backed repository.
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, dept *models.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *departmentRepository) GetByID(ctx context.Context, id uint) (models.Department, error) {
	var dept models.Department
	if err := r.db.WithContext(ctx).First(&dept, id).Error; err != nil {
		return models.Department{}, err
	}

	return dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var depts []models.Department
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&depts).Error; err != nil {
		return nil, err
	}

	return depts, nil
}

func (r *departmentRepository) Update(ctx context.Context, dept *models.Department) error {
	return r.db.WithContext(ctx).Save(dept).Error
}

func (r *departmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("dept_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDepartmentInUse
		}
		result := tx.Delete(&models.Department{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
