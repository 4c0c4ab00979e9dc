package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
)

type recordingObserver struct {
	scans []dto.ScanResponse
}

func (o *recordingObserver) ScanRecorded(scan dto.ScanResponse) {
	o.scans = append(o.scans, scan)
}

// approvedOutpass submits a same-day request and pushes it through an HOD
// override so a live QR token exists.
func approvedOutpass(t *testing.T, f *workflowFixture, outDate string) string {
	t.Helper()

	svc := f.newOutpassService(t, fixedNow)
	payload := validCreateRequest()
	payload.OutDate = outDate

	outpass, err := svc.Submit(context.Background(), f.student.ID, payload, "")
	require.NoError(t, err)

	_, err = svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "approved for gate test"}, "")
	require.NoError(t, err)

	var stored models.Outpass
	require.NoError(t, f.db.First(&stored, outpass.ID).Error)
	require.NotNil(t, stored.QRToken)
	return *stored.QRToken
}

func TestScanServiceExitThenEntry(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")

	observer := &recordingObserver{}
	svc := f.newScanService(t, fixedNow, observer)

	verified, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, string(models.FinalApproved), verified.FinalStatus)

	exit, err := svc.RecordExit(context.Background(), f.security.ID, token, "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, DirectionExit, exit.Direction)
	require.Equal(t, string(models.FinalUsed), exit.Outpass.FinalStatus)
	require.True(t, exit.Outpass.IsQRUsed)
	require.NotNil(t, exit.Outpass.ActualExitTime)

	entry, err := svc.RecordEntry(context.Background(), f.security.ID, token, "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, DirectionEntry, entry.Direction)
	require.NotNil(t, entry.Outpass.ActualEntryTime)

	require.Len(t, observer.scans, 2)
	require.Equal(t, []string{DirectionExit, DirectionEntry}, []string{observer.scans[0].Direction, observer.scans[1].Direction})

	actions := f.logActions(t, exit.Outpass.ID)
	require.Equal(t, models.ActionExitScanned, actions[len(actions)-2])
	require.Equal(t, models.ActionEntryScanned, actions[len(actions)-1])
}

func TestScanServiceExitRejectsReusedToken(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")
	svc := f.newScanService(t, fixedNow, nil)

	exit, err := svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	_, err = svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrQRAlreadyUsed)

	// The failed attempt is recorded without changing the outpass.
	actions := f.logActions(t, exit.Outpass.ID)
	require.Equal(t, models.ActionReused, actions[len(actions)-1])

	var stored models.Outpass
	require.NoError(t, f.db.First(&stored, exit.Outpass.ID).Error)
	require.Equal(t, models.FinalUsed, stored.FinalStatus)
}

func TestScanServiceExitRejectsExpiredToken(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")
	svc := f.newScanService(t, fixedNow.Add(2*time.Hour), nil)

	_, err := svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrQRExpired)

	var stored models.Outpass
	require.NoError(t, f.db.Where("qr_token = ?", token).First(&stored).Error)
	require.False(t, stored.IsQRUsed)
	require.Nil(t, stored.ActualExitTime)

	actions := f.logActions(t, stored.ID)
	require.Equal(t, models.ActionExpired, actions[len(actions)-1])
}

func TestScanServiceExitRejectsUnapprovedToken(t *testing.T) {
	f := newWorkflowFixture(t)
	outSvc := f.newOutpassService(t, fixedNow)

	pending, err := outSvc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	// A token planted on a still-pending request must not open the gate.
	token := "QR-00000001-1748854800-deadbeefdeadbeef"
	expires := fixedNow.Add(time.Hour)
	require.NoError(t, f.db.Model(&models.Outpass{}).Where("id = ?", pending.ID).
		Updates(map[string]any{"qr_token": token, "qr_expires_at": expires}).Error)

	svc := f.newScanService(t, fixedNow, nil)
	_, err = svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestScanServiceExitRejectsFutureDated(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-03")
	svc := f.newScanService(t, fixedNow, nil)

	_, err := svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrFutureDated)
}

func TestScanServiceEntryGuards(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")
	svc := f.newScanService(t, fixedNow, nil)

	_, err := svc.RecordEntry(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrNotExited)

	_, err = svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	_, err = svc.RecordEntry(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	_, err = svc.RecordEntry(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrAlreadyReturned)
}

func TestScanServiceEntryAllowedAfterExpiry(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")

	exitSvc := f.newScanService(t, fixedNow, nil)
	_, err := exitSvc.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	// The student must be able to re-enter even if they return late.
	lateSvc := f.newScanService(t, fixedNow.Add(3*time.Hour), nil)
	entry, err := lateSvc.RecordEntry(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)
	require.Equal(t, DirectionEntry, entry.Direction)
}

func TestScanServiceUnknownToken(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newScanService(t, fixedNow, nil)

	_, err := svc.Verify(context.Background(), "QR-99999999-1748854800-ffffffffffffffff")
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = svc.RecordExit(context.Background(), f.security.ID, "QR-99999999-1748854800-ffffffffffffffff", "")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestScanServiceGateDashboard(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")

	svc := f.newScanService(t, fixedNow, nil)

	exit, err := svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	out, err := svc.StudentsOut(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, exit.Outpass.ID, out[0].ID)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.StudentsOut)
	require.EqualValues(t, 1, summary.ExitsToday)
	require.EqualValues(t, 0, summary.EntriesToday)
	require.EqualValues(t, 0, summary.MisuseToday)

	activity, err := svc.RecentActivity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	require.Equal(t, models.ActionExitScanned, activity[0].Action)

	_, err = svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.ErrorIs(t, err, ErrQRAlreadyUsed)

	_, err = svc.RecordEntry(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	summary, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, summary.StudentsOut)
	require.EqualValues(t, 1, summary.EntriesToday)
	require.EqualValues(t, 1, summary.MisuseToday)

	activity, err = svc.RecentActivity(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	require.Equal(t, models.ActionEntryScanned, activity[0].Action)
}

func TestScanServiceEntryByOutpassID(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")
	svc := f.newScanService(t, fixedNow, nil)

	exit, err := svc.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	_, err = svc.RecordEntryByID(context.Background(), f.security.ID, 9999, "")
	require.ErrorIs(t, err, ErrTokenNotFound)

	entry, err := svc.RecordEntryByID(context.Background(), f.security.ID, exit.Outpass.ID, "10.0.0.3")
	require.NoError(t, err)
	require.Equal(t, DirectionEntry, entry.Direction)
	require.NotNil(t, entry.Outpass.ActualEntryTime)

	actions := f.logActions(t, exit.Outpass.ID)
	require.Equal(t, models.ActionEntryScanned, actions[len(actions)-1])

	_, err = svc.RecordEntryByID(context.Background(), f.security.ID, exit.Outpass.ID, "")
	require.ErrorIs(t, err, ErrAlreadyReturned)
}

func TestScanServiceEntryByOutpassIDRequiresExit(t *testing.T) {
	f := newWorkflowFixture(t)
	outpasses := f.newOutpassService(t, fixedNow)

	pending, err := outpasses.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	svc := f.newScanService(t, fixedNow, nil)
	_, err = svc.RecordEntryByID(context.Background(), f.security.ID, pending.ID, "")
	require.ErrorIs(t, err, ErrNotExited)
}
