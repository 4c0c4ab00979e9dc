package models

import "time"

// Status is the closed set of per-stage approval states.
type Status string

// Per-stage status values.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// FinalStatus is the aggregate outcome of an outpass.
type FinalStatus string

// Aggregate status values. FinalUsed is reached once the QR token is consumed.
const (
	FinalPending  FinalStatus = "pending"
	FinalApproved FinalStatus = "approved"
	FinalRejected FinalStatus = "rejected"
	FinalUsed     FinalStatus = "used"
)

// Valid reports whether s is a member of the per-stage status domain.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// DeriveFinalStatus computes the aggregate status from the two approval
// stages and the QR usage flag. It is the single source of truth for
// final_status; the stored column is refreshed from it on every transition.
func DeriveFinalStatus(advisor, hod Status, qrUsed bool) FinalStatus {
	switch {
	case advisor == StatusRejected || hod == StatusRejected:
		return FinalRejected
	case advisor == StatusApproved && hod == StatusApproved:
		if qrUsed {
			return FinalUsed
		}
		return FinalApproved
	default:
		return FinalPending
	}
}

// Outpass is one leave request moving through the advisor → HOD → security
// approval pipeline.
type Outpass struct {
	ID        uint `gorm:"primaryKey" json:"outpass_id"`
	StudentID uint `gorm:"index;not null" json:"student_id"`
	AdvisorID uint `gorm:"index;not null" json:"advisor_id"`
	HODID     *uint `gorm:"index" json:"hod_id"`

	OutDate            time.Time `gorm:"type:date;not null" json:"-"`
	OutTime            string    `gorm:"size:8;not null" json:"out_time"`
	ExpectedReturnTime string    `gorm:"size:8;not null" json:"expected_return_time"`
	Reason             string    `gorm:"type:text;not null" json:"reason"`
	Destination        string    `gorm:"type:text" json:"destination"`

	AdvisorStatus     Status     `gorm:"size:20;not null;default:pending" json:"advisor_status"`
	AdvisorRemarks    string     `gorm:"type:text" json:"advisor_remarks"`
	AdvisorActionTime *time.Time `json:"advisor_action_time"`

	HODStatus     Status     `gorm:"size:20;not null;default:pending" json:"hod_status"`
	HODRemarks    string     `gorm:"type:text" json:"hod_remarks"`
	HODActionTime *time.Time `json:"hod_action_time"`

	FinalStatus FinalStatus `gorm:"size:20;not null;default:pending;index" json:"final_status"`

	QRToken       *string    `gorm:"size:100;uniqueIndex" json:"qr_token"`
	QRGeneratedAt *time.Time `json:"qr_generated_at"`
	QRExpiresAt   *time.Time `json:"qr_expires_at"`
	IsQRUsed      bool       `gorm:"default:false" json:"is_qr_used"`

	ActualExitTime  *time.Time `json:"actual_exit_time"`
	ActualEntryTime *time.Time `json:"actual_entry_time"`
	ExitSecurityID  *uint      `json:"exit_security_id"`
	EntrySecurityID *uint      `json:"entry_security_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Advisor *User `gorm:"belongsTo;foreignKey:AdvisorID;references:ID" json:"advisor,omitempty"`
	HOD     *User `gorm:"foreignKey:HODID" json:"hod,omitempty"`

	Logs []OutpassLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// RefreshFinalStatus recomputes the stored aggregate from the stage fields.
func (o *Outpass) RefreshFinalStatus() {
	o.FinalStatus = DeriveFinalStatus(o.AdvisorStatus, o.HODStatus, o.IsQRUsed)
}

// QRExpired reports whether the issued token has passed its expiry.
func (o Outpass) QRExpired(reference time.Time) bool {
	return o.QRExpiresAt != nil && reference.After(*o.QRExpiresAt)
}

// FutureDated reports whether the requested out-date is strictly after the
// reference day, in which case exit is not yet permitted.
func (o Outpass) FutureDated(reference time.Time) bool {
	refDay := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, reference.Location())
	outDay := time.Date(o.OutDate.Year(), o.OutDate.Month(), o.OutDate.Day(), 0, 0, 0, 0, reference.Location())
	return outDay.After(refDay)
}
