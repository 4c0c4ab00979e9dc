//go:build postgres

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/campuspass/outpass-api/internal/models"
)

// Run with -tags postgres against a disposable database:
//
//	OUTPASS_TEST_POSTGRES_DSN="host=localhost user=postgres dbname=outpass_test" go test -tags postgres ./internal/repository
func setupPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("OUTPASS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OUTPASS_TEST_POSTGRES_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	tables := []interface{}{&models.OutpassLog{}, &models.Outpass{}, &models.User{}, &models.Department{}}
	require.NoError(t, db.Migrator().DropTable(tables...))
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.User{}, &models.Outpass{}, &models.OutpassLog{}))
	t.Cleanup(func() {
		_ = db.Migrator().DropTable(tables...)
	})

	return db
}

// Races concurrent advisor decisions against the row lock taken by
// Transition. Exactly one attempt may win; the rest must observe the decided
// stage, and only one audit row may exist afterwards.
func TestOutpassRepositoryTransitionSingleWinner(t *testing.T) {
	db := setupPostgresTestDB(t)
	repo := NewOutpassRepository(db)
	student, advisor := seedWorkflowUsers(t, db)

	outpass := newPendingOutpass(student, advisor)
	require.NoError(t, repo.Create(context.Background(), outpass, nil))

	errAlreadyDecided := errors.New("stage already decided")
	now := time.Now()
	decide := func() error {
		_, err := repo.Transition(context.Background(), outpass.ID, func(o *models.Outpass) (*models.OutpassLog, error) {
			if o.AdvisorStatus != models.StatusPending {
				return nil, errAlreadyDecided
			}

			o.AdvisorStatus = models.StatusApproved
			o.AdvisorActionTime = &now
			return &models.OutpassLog{ActorID: advisor.ID, Action: models.ActionAdvisorApproved}, nil
		})
		return err
	}

	const racers = 8
	var (
		start sync.WaitGroup
		wg    sync.WaitGroup
	)
	start.Add(1)
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			results <- decide()
		}()
	}
	start.Done()
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, errAlreadyDecided)
	}
	require.Equal(t, 1, wins)

	var logCount int64
	require.NoError(t, db.Model(&models.OutpassLog{}).
		Where("outpass_id = ? AND action = ?", outpass.ID, models.ActionAdvisorApproved).
		Count(&logCount).Error)
	require.EqualValues(t, 1, logCount)
}
