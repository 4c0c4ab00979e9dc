package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
	"github.com/campuspass/outpass-api/internal/repository"
)

// Administration errors.
var (
	ErrDepartmentNotFound = errors.New("department not found")
	ErrDepartmentInUse    = errors.New("department still has users assigned")
	ErrNotAnAdvisor       = errors.New("assignee is not a staff member")
)

// AdminService manages accounts and departments.
type AdminService interface {
	CreateUser(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error)
	GetUser(ctx context.Context, id uint) (dto.UserResponse, error)
	ListUsers(ctx context.Context, query dto.UserListQuery) ([]dto.UserResponse, error)
	UpdateUser(ctx context.Context, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error)
	DeleteUser(ctx context.Context, id uint) error
	ResetPassword(ctx context.Context, id uint, payload dto.PasswordResetRequest) error
	AssignAdvisor(ctx context.Context, payload dto.AssignAdvisorRequest) (int64, error)

	CreateDepartment(ctx context.Context, payload dto.DepartmentRequest) (models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	UpdateDepartment(ctx context.Context, id uint, payload dto.DepartmentRequest) (models.Department, error)
	DeleteDepartment(ctx context.Context, id uint) error
}

type adminService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAdminService builds the administration service.
func NewAdminService(users repository.UserRepository, departments repository.DepartmentRepository, validate *validator.Validate, logger zerolog.Logger) AdminService {
	return &adminService{
		users:       users,
		departments: departments,
		validator:   validate,
		logger:      logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) CreateUser(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username:       strings.TrimSpace(payload.Username),
		FullName:       strings.TrimSpace(payload.FullName),
		Email:          email,
		PasswordHash:   string(hash),
		Role:           payload.Role,
		RegistrationNo: strings.TrimSpace(payload.RegistrationNo),
		DeptID:         payload.DeptID,
		AdvisorID:      payload.AdvisorID,
		Phone:          strings.TrimSpace(payload.Phone),
		ParentName:     strings.TrimSpace(payload.ParentName),
		ParentMobile:   strings.TrimSpace(payload.ParentMobile),
		IsActive:       true,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user created")

	created, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return dto.NewUserResponse(user), nil
	}

	return dto.NewUserResponse(created), nil
}

func (s *adminService) GetUser(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}

		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *adminService) ListUsers(ctx context.Context, query dto.UserListQuery) ([]dto.UserResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, repository.UserFilter{
		Role:     query.Role,
		DeptID:   query.DeptID,
		IsActive: query.IsActive,
		Search:   strings.TrimSpace(query.Search),
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewUserResponseSlice(users), nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}

		return dto.UserResponse{}, err
	}

	if payload.FullName != nil {
		user.FullName = strings.TrimSpace(*payload.FullName)
	}
	if payload.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}
	if payload.Role != nil {
		user.Role = *payload.Role
	}
	if payload.DeptID != nil {
		user.DeptID = payload.DeptID
	}
	if payload.AdvisorID != nil {
		user.AdvisorID = payload.AdvisorID
	}
	if payload.Phone != nil {
		user.Phone = strings.TrimSpace(*payload.Phone)
	}
	if payload.ParentName != nil {
		user.ParentName = strings.TrimSpace(*payload.ParentName)
	}
	if payload.ParentMobile != nil {
		user.ParentMobile = strings.TrimSpace(*payload.ParentMobile)
	}
	if payload.IsActive != nil {
		user.IsActive = *payload.IsActive
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	updated, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return dto.NewUserResponse(user), nil
	}

	return dto.NewUserResponse(updated), nil
}

// DeleteUser removes an account. A student's outpasses and their audit trail
// go with it; advisees of removed staff fall back to the department HOD.
func (s *adminService) DeleteUser(ctx context.Context, id uint) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	s.logger.Info().Uint("user_id", id).Msg("user deleted")

	return nil
}

func (s *adminService) ResetPassword(ctx context.Context, id uint, payload dto.PasswordResetRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, &user); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", id).Msg("password reset")

	return nil
}

func (s *adminService) AssignAdvisor(ctx context.Context, payload dto.AssignAdvisorRequest) (int64, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	advisor, err := s.users.GetByID(ctx, payload.AdvisorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}

		return 0, err
	}
	if advisor.Role != models.RoleStaff && advisor.Role != models.RoleHOD {
		return 0, ErrNotAnAdvisor
	}

	return s.users.AssignAdvisor(ctx, payload.StudentIDs, payload.AdvisorID)
}

func (s *adminService) CreateDepartment(ctx context.Context, payload dto.DepartmentRequest) (models.Department, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Department{}, err
	}

	dept := models.Department{
		Name: strings.TrimSpace(payload.Name),
		Code: strings.ToUpper(strings.TrimSpace(payload.Code)),
	}
	if err := s.departments.Create(ctx, &dept); err != nil {
		return models.Department{}, err
	}

	return dept, nil
}

func (s *adminService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return s.departments.List(ctx)
}

func (s *adminService) UpdateDepartment(ctx context.Context, id uint, payload dto.DepartmentRequest) (models.Department, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Department{}, err
	}

	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Department{}, ErrDepartmentNotFound
		}

		return models.Department{}, err
	}

	dept.Name = strings.TrimSpace(payload.Name)
	dept.Code = strings.ToUpper(strings.TrimSpace(payload.Code))
	if err := s.departments.Update(ctx, &dept); err != nil {
		return models.Department{}, err
	}

	return dept, nil
}

func (s *adminService) DeleteDepartment(ctx context.Context, id uint) error {
	if err := s.departments.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrDepartmentNotFound
		case errors.Is(err, repository.ErrDepartmentInUse):
			return ErrDepartmentInUse
		}

		return err
	}

	return nil
}
