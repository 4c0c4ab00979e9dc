package dto

import (
	"time"

	"github.com/campuspass/outpass-api/internal/models"
)

// LoginRequest carries credentials for token issuance. The identifier is a
// username or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=255"`
	Password   string `json:"password" validate:"required,min=6"`
}

// LoginResponse returns the signed token together with the account profile.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// RegisterRequest describes self-service student registration.
type RegisterRequest struct {
	Username       string `json:"username" validate:"required,min=3,max=100"`
	FullName       string `json:"full_name" validate:"required,min=2,max=255"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	RegistrationNo string `json:"registration_no" validate:"required,min=3,max=50"`
	DeptID         uint   `json:"dept_id" validate:"required,gt=0"`
	AdvisorID      *uint  `json:"advisor_id" validate:"omitempty,gt=0"`
	Phone          string `json:"phone" validate:"omitempty,min=7,max=15"`
	ParentName     string `json:"parent_name" validate:"omitempty,max=255"`
	ParentMobile   string `json:"parent_mobile" validate:"omitempty,min=7,max=15"`
}

// UserResponse is the account representation returned to API clients.
type UserResponse struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	RegistrationNo string    `json:"registration_no,omitempty"`
	DeptID         *uint     `json:"dept_id"`
	Department     string    `json:"department,omitempty"`
	AdvisorID      *uint     `json:"advisor_id"`
	Advisor        string    `json:"advisor,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	ParentName     string    `json:"parent_name,omitempty"`
	ParentMobile   string    `json:"parent_mobile,omitempty"`
	ProfileImage   string    `json:"profile_image,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserLite summarizes an account inside other responses.
type UserLite struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// NewUserResponse converts a User model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	response := UserResponse{
		ID:             model.ID,
		Username:       model.Username,
		FullName:       model.FullName,
		Email:          model.Email,
		Role:           model.Role,
		RegistrationNo: model.RegistrationNo,
		DeptID:         model.DeptID,
		AdvisorID:      model.AdvisorID,
		Phone:          model.Phone,
		ParentName:     model.ParentName,
		ParentMobile:   model.ParentMobile,
		ProfileImage:   model.ProfileImage,
		IsActive:       model.IsActive,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.Department != nil && model.Department.ID != 0 {
		response.Department = model.Department.Name
	}
	if model.Advisor != nil && model.Advisor.ID != 0 {
		response.Advisor = model.Advisor.FullName
	}

	return response
}

// NewUserLite summarizes a User model.
func NewUserLite(model models.User) UserLite {
	return UserLite{
		ID:       model.ID,
		FullName: model.FullName,
		Email:    model.Email,
		Role:     model.Role,
	}
}

// NewUserResponseSlice converts a list of users.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}

	return responses
}
