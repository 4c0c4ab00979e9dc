package models

import "time"

// Role values recognised by the workflow.
const (
	RoleStudent  = "student"
	RoleStaff    = "staff"
	RoleHOD      = "hod"
	RoleSecurity = "security"
	RoleAdmin    = "admin"
)

// User is an actor in the outpass workflow. Students carry an advisor
// assignment and a department; staff and HODs belong to a department.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash   string     `gorm:"size:255;not null" json:"-"`
	FullName       string     `gorm:"size:255;not null" json:"full_name"`
	Role           string     `gorm:"size:20;not null;index" json:"role"`
	DeptID         *uint      `gorm:"index" json:"dept_id"`
	AdvisorID      *uint      `gorm:"index" json:"advisor_id"`
	RegistrationNo string     `gorm:"size:50" json:"registration_no"`
	Phone          string     `gorm:"size:20" json:"phone"`
	ParentName     string     `gorm:"size:255" json:"parent_name"`
	ParentMobile   string     `gorm:"size:20" json:"parent_mobile"`
	ProfileImage   string     `gorm:"size:512" json:"profile_image"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Department     *Department `gorm:"foreignKey:DeptID" json:"department,omitempty"`
	Advisor        *User       `gorm:"foreignKey:AdvisorID;references:ID" json:"advisor,omitempty"`
}

// IsStudent reports whether the user holds the student role.
func (u User) IsStudent() bool { return u.Role == RoleStudent }
