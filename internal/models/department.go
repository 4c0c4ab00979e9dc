package models

import "time"

// Department groups students, staff and exactly one active HOD.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"dept_id"`
	Name      string    `gorm:"size:255;not null" json:"dept_name"`
	Code      string    `gorm:"size:20;uniqueIndex;not null" json:"dept_code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
