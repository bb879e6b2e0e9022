package database

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/agentforum/config"
)

func mockGorm(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return mock, gormDB
}

var testLimits = Limits{MaxOpen: 10, MaxIdle: 5, MaxLifetime: time.Hour}

func TestWrap(t *testing.T) {
	_, gormDB := mockGorm(t)

	p, err := Wrap(gormDB, testLimits, nil, WithHealthCheck(0))
	require.NoError(t, err)
	assert.Same(t, gormDB, p.DB())
	assert.Equal(t, "postgres", p.label)
	assert.Equal(t, 10, p.sqlDB.Stats().MaxOpenConnections)
}

func TestWrap_Invalid(t *testing.T) {
	_, err := Wrap(nil, testLimits, zap.NewNop())
	assert.Error(t, err)

	_, gormDB := mockGorm(t)
	tests := []struct {
		name   string
		limits Limits
	}{
		{"zero open", Limits{MaxOpen: 0, MaxIdle: 1}},
		{"zero idle", Limits{MaxOpen: 10, MaxIdle: 0}},
		{"idle > open", Limits{MaxOpen: 1, MaxIdle: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(gormDB, tt.limits, nil)
			assert.Error(t, err)
		})
	}
}

func TestPool_Ping(t *testing.T) {
	mock, gormDB := mockGorm(t)
	p, err := Wrap(gormDB, testLimits, zap.NewNop(), WithHealthCheck(0))
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, p.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, p.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Close(t *testing.T) {
	mock, gormDB := mockGorm(t)
	p, err := Wrap(gormDB, testLimits, zap.NewNop(), WithHealthCheck(0))
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, p.Ping(context.Background()), ErrPoolClosed)
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls int
	label string
}

func (f *fakeRecorder) RecordDBConnections(database string, _, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.label = database
}

func (f *fakeRecorder) snapshot() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.label
}

func TestPool_HealthCheckRecordsStats(t *testing.T) {
	mock, gormDB := mockGorm(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 100; i++ {
		mock.ExpectPing()
	}

	rec := &fakeRecorder{}
	p, err := Wrap(gormDB, testLimits, zap.NewNop(),
		WithHealthCheck(20*time.Millisecond),
		WithStatsRecorder("scenarios", rec))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := rec.snapshot()
		return n >= 2
	}, 2*time.Second, 10*time.Millisecond)
	_, label := rec.snapshot()
	assert.Equal(t, "scenarios", label)

	mock.ExpectClose()
	require.NoError(t, p.Close())
}

func TestLimitsFor(t *testing.T) {
	def := limitsFor(config.DatabaseConfig{Driver: "postgres"})
	assert.Equal(t, 10, def.MaxOpen)
	assert.Equal(t, 2, def.MaxIdle)
	assert.NoError(t, def.validate())

	custom := limitsFor(config.DatabaseConfig{Driver: "mysql", MaxOpenConns: 4, MaxIdleConns: 8, ConnMaxLifetime: time.Hour})
	assert.Equal(t, Limits{MaxOpen: 4, MaxIdle: 4, MaxLifetime: time.Hour, MaxIdleTime: time.Minute}, custom)

	lite := limitsFor(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 20})
	assert.Equal(t, 1, lite.MaxOpen)
	assert.Equal(t, 1, lite.MaxIdle)
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Name: "forum"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	p, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Ping(context.Background()))
	assert.Equal(t, 1, p.sqlDB.Stats().MaxOpenConnections)

	var one int
	require.NoError(t, p.DB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}
