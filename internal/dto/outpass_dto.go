package dto

import (
	"time"

	"github.com/campuspass/outpass-api/internal/models"
)

// OutpassCreateRequest describes a new leave request submitted by a student.
type OutpassCreateRequest struct {
	OutDate            string `json:"out_date" validate:"required,datetime=2006-01-02"`
	OutTime            string `json:"out_time" validate:"required,datetime=15:04:05"`
	ExpectedReturnTime string `json:"expected_return_time" validate:"required,datetime=15:04:05"`
	Reason             string `json:"reason" validate:"required,min=3,max=500"`
	Destination        string `json:"destination" validate:"required,min=2,max=255"`
}

// DecisionRequest carries an approve or reject verdict for a pending stage.
type DecisionRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve reject"`
	Remarks string `json:"remarks" validate:"omitempty,max=500"`
}

// OverrideRequest carries a direct HOD approval that skips the advisor stage.
type OverrideRequest struct {
	Remarks string `json:"remarks" validate:"required,min=3,max=500"`
}

// OutpassListQuery describes query string filters for listing outpasses.
type OutpassListQuery struct {
	Status *string `query:"status" validate:"omitempty,oneof=pending approved rejected used"`
	From   *string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To     *string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit  int     `query:"limit" validate:"omitempty,gte=1,lte=500"`
}

// OutpassResponse is returned to API clients when viewing outpasses.
type OutpassResponse struct {
	ID                 uint       `json:"id"`
	Student            UserLite   `json:"student"`
	RegistrationNo     string     `json:"registration_no,omitempty"`
	Department         string     `json:"department,omitempty"`
	OutDate            string     `json:"out_date"`
	OutTime            string     `json:"out_time"`
	ExpectedReturnTime string     `json:"expected_return_time"`
	Reason             string     `json:"reason"`
	Destination        string     `json:"destination"`
	AdvisorStatus      string     `json:"advisor_status"`
	AdvisorRemarks     string     `json:"advisor_remarks,omitempty"`
	AdvisorActionTime  *time.Time `json:"advisor_action_time"`
	Advisor            *UserLite  `json:"advisor,omitempty"`
	HODStatus          string     `json:"hod_status"`
	HODRemarks         string     `json:"hod_remarks,omitempty"`
	HODActionTime      *time.Time `json:"hod_action_time"`
	HOD                *UserLite  `json:"hod,omitempty"`
	FinalStatus        string     `json:"final_status"`
	HasQR              bool       `json:"has_qr"`
	QRExpiresAt        *time.Time `json:"qr_expires_at,omitempty"`
	IsQRUsed           bool       `json:"is_qr_used"`
	ActualExitTime     *time.Time `json:"actual_exit_time,omitempty"`
	ActualEntryTime    *time.Time `json:"actual_entry_time,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// QRResponse carries the single-use gate pass for an approved outpass.
type QRResponse struct {
	OutpassID uint      `json:"outpass_id"`
	Token     string    `json:"token"`
	Image     string    `json:"image"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OutpassLogResponse serializes one audit trail entry.
type OutpassLogResponse struct {
	ID        uint           `json:"id"`
	OutpassID uint           `json:"outpass_id"`
	Actor     UserLite       `json:"actor"`
	Action    string         `json:"action"`
	Remarks   string         `json:"remarks,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewOutpassResponse converts an Outpass model into a DTO. The raw QR token
// never appears here; students fetch it through the dedicated QR endpoint.
func NewOutpassResponse(model models.Outpass) OutpassResponse {
	response := OutpassResponse{
		ID:                 model.ID,
		OutDate:            model.OutDate.Format("2006-01-02"),
		OutTime:            model.OutTime,
		ExpectedReturnTime: model.ExpectedReturnTime,
		Reason:             model.Reason,
		Destination:        model.Destination,
		AdvisorStatus:      string(model.AdvisorStatus),
		AdvisorRemarks:     model.AdvisorRemarks,
		AdvisorActionTime:  model.AdvisorActionTime,
		HODStatus:          string(model.HODStatus),
		HODRemarks:         model.HODRemarks,
		HODActionTime:      model.HODActionTime,
		FinalStatus:        string(model.FinalStatus),
		HasQR:              model.QRToken != nil,
		QRExpiresAt:        model.QRExpiresAt,
		IsQRUsed:           model.IsQRUsed,
		ActualExitTime:     model.ActualExitTime,
		ActualEntryTime:    model.ActualEntryTime,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}

	if model.Student != nil && model.Student.ID != 0 {
		response.Student = NewUserLite(*model.Student)
		response.RegistrationNo = model.Student.RegistrationNo
		if model.Student.Department != nil {
			response.Department = model.Student.Department.Name
		}
	}
	if model.Advisor != nil && model.Advisor.ID != 0 {
		lite := NewUserLite(*model.Advisor)
		response.Advisor = &lite
	}
	if model.HOD != nil && model.HOD.ID != 0 {
		lite := NewUserLite(*model.HOD)
		response.HOD = &lite
	}

	return response
}

// NewOutpassResponseSlice converts a list of outpasses.
func NewOutpassResponseSlice(outpasses []models.Outpass) []OutpassResponse {
	responses := make([]OutpassResponse, 0, len(outpasses))
	for _, outpass := range outpasses {
		responses = append(responses, NewOutpassResponse(outpass))
	}

	return responses
}

// NewOutpassLogResponse converts an OutpassLog model into a DTO.
func NewOutpassLogResponse(model models.OutpassLog) OutpassLogResponse {
	response := OutpassLogResponse{
		ID:        model.ID,
		OutpassID: model.OutpassID,
		Action:    model.Action,
		Remarks:   model.Remarks,
		IPAddress: model.IPAddress,
		Metadata:  model.Metadata,
		CreatedAt: model.CreatedAt,
	}

	if model.Actor != nil && model.Actor.ID != 0 {
		response.Actor = NewUserLite(*model.Actor)
	}

	return response
}

// NewOutpassLogResponseSlice converts a list of audit entries.
func NewOutpassLogResponseSlice(entries []models.OutpassLog) []OutpassLogResponse {
	responses := make([]OutpassLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewOutpassLogResponse(entry))
	}

	return responses
}
