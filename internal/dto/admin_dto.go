package dto

// UserCreateRequest describes an account created by an administrator.
type UserCreateRequest struct {
	Username       string `json:"username" validate:"required,min=3,max=100"`
	FullName       string `json:"full_name" validate:"required,min=2,max=255"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	Role           string `json:"role" validate:"required,oneof=student staff hod security admin"`
	RegistrationNo string `json:"registration_no" validate:"omitempty,min=3,max=50"`
	DeptID         *uint  `json:"dept_id" validate:"omitempty,gt=0"`
	AdvisorID      *uint  `json:"advisor_id" validate:"omitempty,gt=0"`
	Phone          string `json:"phone" validate:"omitempty,min=7,max=15"`
	ParentName     string `json:"parent_name" validate:"omitempty,max=255"`
	ParentMobile   string `json:"parent_mobile" validate:"omitempty,min=7,max=15"`
}

// UserUpdateRequest patches an account. Nil fields are left untouched.
type UserUpdateRequest struct {
	FullName     *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Role         *string `json:"role" validate:"omitempty,oneof=student staff hod security admin"`
	DeptID       *uint   `json:"dept_id" validate:"omitempty,gt=0"`
	AdvisorID    *uint   `json:"advisor_id" validate:"omitempty,gt=0"`
	Phone        *string `json:"phone" validate:"omitempty,min=7,max=15"`
	ParentName   *string `json:"parent_name" validate:"omitempty,max=255"`
	ParentMobile *string `json:"parent_mobile" validate:"omitempty,min=7,max=15"`
	IsActive     *bool   `json:"is_active"`
}

// PasswordResetRequest sets a new password for an account.
type PasswordResetRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AssignAdvisorRequest bulk-assigns an advisor to students.
type AssignAdvisorRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1,dive,gt=0"`
	AdvisorID  uint   `json:"advisor_id" validate:"required,gt=0"`
}

// UserListQuery describes query string filters for listing accounts.
type UserListQuery struct {
	Role     *string `query:"role" validate:"omitempty,oneof=student staff hod security admin"`
	DeptID   *uint   `query:"dept_id" validate:"omitempty,gt=0"`
	IsActive *bool   `query:"is_active"`
	Search   string  `query:"search" validate:"omitempty,max=120"`
	Limit    int     `query:"limit" validate:"omitempty,gte=1,lte=500"`
}

// DepartmentRequest creates or updates a department.
type DepartmentRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Code string `json:"code" validate:"required,min=2,max=16"`
}
