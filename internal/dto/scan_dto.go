package dto

import (
	"time"

	"github.com/campuspass/outpass-api/internal/models"
)

// ScanRequest carries a QR token presented at the gate.
type ScanRequest struct {
	Token string `json:"token" validate:"required,min=10,max=100"`
}

// EntryRequest identifies a returning student. The token was consumed at the
// exit scan, so the outpass id is accepted in its place.
type EntryRequest struct {
	Token     string `json:"token" validate:"required_without=OutpassID,omitempty,min=10,max=100"`
	OutpassID uint   `json:"outpass_id" validate:"required_without=Token,omitempty,gt=0"`
}

// ScanResponse is returned to security after a gate scan.
type ScanResponse struct {
	Direction string          `json:"direction"`
	ScannedAt time.Time       `json:"scanned_at"`
	Outpass   OutpassResponse `json:"outpass"`
}

// NewScanResponse builds the gate scan result.
func NewScanResponse(direction string, scannedAt time.Time, outpass models.Outpass) ScanResponse {
	return ScanResponse{
		Direction: direction,
		ScannedAt: scannedAt,
		Outpass:   NewOutpassResponse(outpass),
	}
}

// GateSummary aggregates today's gate activity for the security dashboard.
type GateSummary struct {
	StudentsOut  int64 `json:"students_out"`
	ExitsToday   int64 `json:"exits_today"`
	EntriesToday int64 `json:"entries_today"`
	MisuseToday  int64 `json:"misuse_today"`
}
