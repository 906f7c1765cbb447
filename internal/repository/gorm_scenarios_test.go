package repository

import (
	"context"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/config"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	// Metrics are package globals registered once per process.
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "repotest"}})
	os.Exit(m.Run())
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// The transition must be a single guarded UPDATE: the expected state sits in
// the WHERE clause next to the tenant scope, so two racing transitions
// resolve to exactly one winner inside the database.
func TestCompareAndSwapStateIssuesGuardedUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormScenarioRepository(db)

	mock.ExpectExec(`UPDATE "scenarios" SET .+ WHERE \(id = \$\d+ AND tenant_id = \$\d+ AND state = \$\d+\) AND "scenarios"\."deleted_at" IS NULL`).
		WithArgs("ready_to_run", sqlmock.AnyArg(), 7, 1, "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CompareAndSwapState(context.Background(), 1, 7, model.StateDraft, map[string]interface{}{
		"state": model.StateReadyToRun,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapStateLoserGetsStateMismatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormScenarioRepository(db)

	mock.ExpectExec(`UPDATE "scenarios" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The zero row count is disambiguated by re-reading: the row exists, so
	// the swap was lost, not the row.
	mock.ExpectQuery(`SELECT \* FROM "scenarios" WHERE tenant_id = \$\d+ AND "scenarios"\."id" = \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "state"}).
			AddRow(7, 1, "is_running"))

	err := repo.CompareAndSwapState(context.Background(), 1, 7, model.StateReadyToRun, map[string]interface{}{
		"state": model.StateIsRunning,
	})
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapStateMissingRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormScenarioRepository(db)

	mock.ExpectExec(`UPDATE "scenarios" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "scenarios"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.CompareAndSwapState(context.Background(), 1, 404, model.StateDraft, map[string]interface{}{
		"state": model.StateReadyToRun,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Progress monotonicity is enforced in the WHERE clause, not in Go: a stale
// report simply matches zero rows.
func TestUpdateProgressGuardsInWhereClause(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormScenarioRepository(db)

	mock.ExpectExec(`UPDATE "scenarios" SET .+ WHERE \(id = \$\d+ AND tenant_id = \$\d+ AND state = \$\d+ AND current_rep <= \$\d+ AND total_reps >= \$\d+\)`).
		WithArgs(4, 40.0, sqlmock.AnyArg(), 7, 1, "is_running", 4, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProgress(context.Background(), 1, 7, 4, 40.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressStaleReportRejected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormScenarioRepository(db)

	mock.ExpectExec(`UPDATE "scenarios" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "scenarios"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "state", "current_rep"}).
			AddRow(7, 1, "is_running", 6))

	err := repo.UpdateProgress(context.Background(), 1, 7, 3, 30.0)
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}
