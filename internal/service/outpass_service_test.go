package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
)

func validCreateRequest() dto.OutpassCreateRequest {
	return dto.OutpassCreateRequest{
		OutDate:            "2025-06-03",
		OutTime:            "09:30:00",
		ExpectedReturnTime: "17:00:00",
		Reason:             "family function",
		Destination:        "home town",
	}
}

func TestOutpassServiceSubmit(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalPending), outpass.FinalStatus)
	require.Equal(t, f.advisor.ID, outpass.Advisor.ID)
	require.Equal(t, "2025-06-03", outpass.OutDate)
	require.False(t, outpass.HasQR)
	require.Equal(t, []string{models.ActionCreated}, f.logActions(t, outpass.ID))
}

func TestOutpassServiceSubmitSanitizesText(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	payload := validCreateRequest()
	payload.Reason = `visiting <script>alert("x")</script> relatives`

	outpass, err := svc.Submit(context.Background(), f.student.ID, payload, "10.0.0.1")
	require.NoError(t, err)
	require.NotContains(t, outpass.Reason, "<script>")
	require.Contains(t, outpass.Reason, "relatives")
}

func TestOutpassServiceSubmitDateValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	past := validCreateRequest()
	past.OutDate = "2025-06-01"
	_, err := svc.Submit(context.Background(), f.student.ID, past, "")
	require.ErrorIs(t, err, ErrPastDate)

	farAhead := validCreateRequest()
	farAhead.OutDate = "2025-07-15"
	_, err = svc.Submit(context.Background(), f.student.ID, farAhead, "")
	require.ErrorIs(t, err, ErrTooFarAhead)

	inverted := validCreateRequest()
	inverted.OutTime = "17:00:00"
	inverted.ExpectedReturnTime = "09:00:00"
	_, err = svc.Submit(context.Background(), f.student.ID, inverted, "")
	require.ErrorIs(t, err, ErrReturnBeforeOut)
}

func TestOutpassServiceSubmitNoAdvisorAvailable(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	// Deactivate every reviewer in the department.
	require.NoError(t, f.db.Model(&models.User{}).
		Where("role IN ?", []string{models.RoleStaff, models.RoleHOD}).
		Update("is_active", false).Error)

	_, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.ErrorIs(t, err, ErrNoAdvisorAvailable)
}

func TestOutpassServiceApprovalFlowIssuesQR(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	afterAdvisor, err := svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "approve", Remarks: "ok"}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.StatusApproved), afterAdvisor.AdvisorStatus)
	require.Equal(t, string(models.FinalPending), afterAdvisor.FinalStatus)
	require.False(t, afterAdvisor.HasQR, "token is only minted once both stages approve")

	afterHOD, err := svc.HODDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalApproved), afterHOD.FinalStatus)
	require.True(t, afterHOD.HasQR)
	require.NotNil(t, afterHOD.QRExpiresAt)
	require.WithinDuration(t, fixedNow.Add(time.Hour), *afterHOD.QRExpiresAt, time.Second)

	require.Equal(t, []string{models.ActionCreated, models.ActionAdvisorApproved, models.ActionHODApproved}, f.logActions(t, outpass.ID))
}

func TestOutpassServiceAdvisorDecideGuards(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "reject"}, "")
	require.ErrorIs(t, err, ErrRemarksRequired)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrAlreadyProcessed, "a decided stage can never be decided again")

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, 9999, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrOutpassNotFound)
}

func TestOutpassServiceHODDecideRequiresAdvisorApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.HODDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrAdvisorNotApproved)

	// Rejection does not need the advisor stage.
	rejected, err := svc.HODDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "reject", Remarks: "no"}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalRejected), rejected.FinalStatus)
}

func TestOutpassServiceRejectionIsFinal(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "reject", Remarks: "not allowed"}, "")
	require.NoError(t, err)

	_, err = svc.HODDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOutpassServiceHODOverride(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	overridden, err := svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "urgent medical case"}, "10.0.0.2")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalApproved), overridden.FinalStatus)
	require.Equal(t, "Override approval by HOD", overridden.AdvisorRemarks)
	require.True(t, overridden.HasQR)

	var entries []models.OutpassLog
	require.NoError(t, f.db.Where("outpass_id = ? AND action = ?", outpass.ID, models.ActionHODApproved).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Remarks, "OVERRIDE: "))

	// A second override hits the already-decided guard.
	_, err = svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "again"}, "")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestOutpassServiceCancel(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), f.student.ID, outpass.ID, "")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalRejected), cancelled.FinalStatus)
	require.Equal(t, "Cancelled by student", cancelled.AdvisorRemarks)

	_, err = svc.Cancel(context.Background(), f.student.ID, outpass.ID, "")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOutpassServiceCancelOwnership(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), f.advisor.ID, outpass.ID, "")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestOutpassServiceQRCode(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.QRCode(context.Background(), f.student.ID, outpass.ID)
	require.ErrorIs(t, err, ErrQRNotAvailable, "no token before approval")

	_, err = svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "approved"}, "")
	require.NoError(t, err)

	qr, err := svc.QRCode(context.Background(), f.student.ID, outpass.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(qr.Token, "QR-"))
	require.True(t, strings.HasPrefix(qr.Image, "data:image/png;base64,"))

	_, err = svc.QRCode(context.Background(), f.advisor.ID, outpass.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	// Past the expiry window the code is withheld again.
	late := f.newOutpassService(t, fixedNow.Add(2*time.Hour))
	_, err = late.QRCode(context.Background(), f.student.ID, outpass.ID)
	require.ErrorIs(t, err, ErrQRNotAvailable)
}

func TestOutpassServiceListScoping(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	mine, err := svc.ListForStudent(context.Background(), f.student.ID, dto.OutpassListQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	advisorQueue, err := svc.ListForAdvisor(context.Background(), f.advisor.ID, dto.OutpassListQuery{})
	require.NoError(t, err)
	require.Len(t, advisorQueue, 1)

	deptView, err := svc.ListForDepartment(context.Background(), *f.student.DeptID, dto.OutpassListQuery{})
	require.NoError(t, err)
	require.Len(t, deptView, 1)

	pending := string(models.FinalPending)
	filtered, err := svc.ListForStudent(context.Background(), f.student.ID, dto.OutpassListQuery{Status: &pending})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	_, err = svc.GetForStudent(context.Background(), f.advisor.ID, outpass.ID)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestOutpassServiceDeleteForStudent(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	err = svc.DeleteForStudent(context.Background(), f.advisor.ID, outpass.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = svc.DeleteForStudent(context.Background(), f.student.ID, 9999)
	require.ErrorIs(t, err, ErrOutpassNotFound)

	require.NoError(t, svc.DeleteForStudent(context.Background(), f.student.ID, outpass.ID))
	_, err = svc.GetForStudent(context.Background(), f.student.ID, outpass.ID)
	require.ErrorIs(t, err, ErrOutpassNotFound)
}

func TestOutpassServiceDeleteForStudentBlockedAfterExit(t *testing.T) {
	f := newWorkflowFixture(t)
	token := approvedOutpass(t, f, "2025-06-02")

	scans := f.newScanService(t, fixedNow, nil)
	exit, err := scans.RecordExit(context.Background(), f.security.ID, token, "")
	require.NoError(t, err)

	svc := f.newOutpassService(t, fixedNow)
	err = svc.DeleteForStudent(context.Background(), f.student.ID, exit.Outpass.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOutpassServiceAdvisees(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	students, err := svc.Advisees(context.Background(), f.advisor.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, f.student.ID, students[0].ID)

	none, err := svc.Advisees(context.Background(), f.hod.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestOutpassServiceAdviseeHistory(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	_, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	history, err := svc.AdviseeHistory(context.Background(), f.advisor.ID, f.student.ID, dto.OutpassListQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = svc.AdviseeHistory(context.Background(), f.hod.ID, f.student.ID, dto.OutpassListQuery{})
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = svc.AdviseeHistory(context.Background(), f.advisor.ID, 9999, dto.OutpassListQuery{})
	require.ErrorIs(t, err, ErrNotAssigned)
}

func TestOutpassServiceHODDepartmentScope(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.NoError(t, err)

	otherDept := models.Department{Name: "Mechanical", Code: "ME"}
	require.NoError(t, f.db.Create(&otherDept).Error)
	foreignHOD := models.User{Username: "hod2", Email: "hod2@example.com", PasswordHash: "x", FullName: "Head Two", Role: models.RoleHOD, DeptID: &otherDept.ID, IsActive: true}
	require.NoError(t, f.db.Create(&foreignHOD).Error)

	_, err = svc.HODDecide(context.Background(), foreignHOD.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = svc.HODOverride(context.Background(), foreignHOD.ID, outpass.ID, dto.OverrideRequest{Remarks: "not my student"}, "")
	require.ErrorIs(t, err, ErrNotAssigned)

	var stored models.Outpass
	require.NoError(t, f.db.First(&stored, outpass.ID).Error)
	require.Equal(t, models.StatusPending, stored.HODStatus)
	require.Equal(t, models.FinalPending, stored.FinalStatus)
	require.Nil(t, stored.QRToken)

	_, err = svc.HODDecide(context.Background(), f.hod.ID, 9999, dto.DecisionRequest{Action: "approve"}, "")
	require.ErrorIs(t, err, ErrOutpassNotFound)

	// The department's own head is unaffected by the scope check.
	approved, err := svc.HODDecide(context.Background(), f.hod.ID, outpass.ID, dto.DecisionRequest{Action: "approve"}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalApproved), approved.FinalStatus)
}

func TestOutpassServiceHODOverrideAfterAdvisorApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "approve", Remarks: "fine by me"}, "")
	require.NoError(t, err)

	overridden, err := svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "expedited"}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.FinalApproved), overridden.FinalStatus)
	require.True(t, overridden.HasQR)

	// The advisor already decided, so their remarks stay on record.
	require.Equal(t, "fine by me", overridden.AdvisorRemarks)

	require.Equal(t, []string{models.ActionCreated, models.ActionAdvisorApproved, models.ActionHODApproved}, f.logActions(t, outpass.ID))
}

func TestOutpassServiceHODOverrideRejectedAdvisorStage(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := f.newOutpassService(t, fixedNow)

	outpass, err := svc.Submit(context.Background(), f.student.ID, validCreateRequest(), "")
	require.NoError(t, err)

	_, err = svc.AdvisorDecide(context.Background(), f.advisor.ID, outpass.ID, dto.DecisionRequest{Action: "reject", Remarks: "no"}, "")
	require.NoError(t, err)

	_, err = svc.HODOverride(context.Background(), f.hod.ID, outpass.ID, dto.OverrideRequest{Remarks: "resurrect"}, "")
	require.ErrorIs(t, err, ErrInvalidState)
}
