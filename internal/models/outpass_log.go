package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded against an outpass.
const (
	ActionCreated         = "created"
	ActionAdvisorApproved = "advisor_approved"
	ActionAdvisorRejected = "advisor_rejected"
	ActionHODApproved     = "hod_approved"
	ActionHODRejected     = "hod_rejected"
	ActionCancelled       = "cancelled"
	ActionExitScanned     = "exit_scanned"
	ActionEntryScanned    = "entry_scanned"
	ActionExpired         = "expired"
	ActionReused          = "reused"
)

// OutpassLog is one immutable audit entry. Rows are written once, never
// updated, and removed only as a cascade of outpass deletion.
type OutpassLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	OutpassID uint              `gorm:"index;not null" json:"outpass_id"`
	ActorID   uint              `gorm:"not null" json:"actor_id"`
	Action    string            `gorm:"size:32;not null;index" json:"action"`
	Remarks   string            `gorm:"type:text" json:"remarks"`
	IPAddress string            `gorm:"size:45" json:"ip_address"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}
