package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
	"github.com/campuspass/outpass-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.User{}, &models.Outpass{}, &models.OutpassLog{}))
	return db
}

type workflowFixture struct {
	db       *gorm.DB
	student  models.User
	advisor  models.User
	hod      models.User
	security models.User

	outpasses repository.OutpassRepository
	logs      repository.OutpassLogRepository
	users     repository.UserRepository
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := setupTestDB(t)

	dept := models.Department{Name: "Computer Science", Code: "CS"}
	require.NoError(t, db.Create(&dept).Error)

	advisor := models.User{Username: "advisor1", Email: "advisor@example.com", PasswordHash: "x", FullName: "Advisor One", Role: models.RoleStaff, DeptID: &dept.ID, IsActive: true}
	require.NoError(t, db.Create(&advisor).Error)

	hod := models.User{Username: "hod1", Email: "hod@example.com", PasswordHash: "x", FullName: "Head One", Role: models.RoleHOD, DeptID: &dept.ID, IsActive: true}
	require.NoError(t, db.Create(&hod).Error)

	security := models.User{Username: "gate1", Email: "gate@example.com", PasswordHash: "x", FullName: "Gate One", Role: models.RoleSecurity, IsActive: true}
	require.NoError(t, db.Create(&security).Error)

	student := models.User{Username: "student1", Email: "student@example.com", PasswordHash: "x", FullName: "Student One", Role: models.RoleStudent, DeptID: &dept.ID, AdvisorID: &advisor.ID, IsActive: true}
	require.NoError(t, db.Create(&student).Error)

	return &workflowFixture{
		db:        db,
		student:   student,
		advisor:   advisor,
		hod:       hod,
		security:  security,
		outpasses: repository.NewOutpassRepository(db),
		logs:      repository.NewOutpassLogRepository(db),
		users:     repository.NewUserRepository(db),
	}
}

// fixedNow is the reference clock used across workflow tests.
var fixedNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func (f *workflowFixture) newOutpassService(t *testing.T, now time.Time) OutpassService {
	t.Helper()

	svc := NewOutpassService(f.outpasses, f.logs, f.users, NewQRTokenIssuer(time.Hour), NewNotifier(nil, testLogger()), testValidator(), 30, testLogger())
	svc.(*outpassService).now = func() time.Time { return now }
	return svc
}

func (f *workflowFixture) newScanService(t *testing.T, now time.Time, observer ScanObserver) ScanService {
	t.Helper()

	svc := NewScanService(f.outpasses, f.logs, NewNotifier(nil, testLogger()), observer, testLogger())
	svc.(*scanService).now = func() time.Time { return now }
	return svc
}

func (f *workflowFixture) logActions(t *testing.T, outpassID uint) []string {
	t.Helper()

	var entries []models.OutpassLog
	require.NoError(t, f.db.Where("outpass_id = ?", outpassID).Order("id ASC").Find(&entries).Error)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}
