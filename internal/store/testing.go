package store

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jobs/scheduler/internal/models"
)

// NewForTesting opens an in-memory sqlite-backed Store for use by this
// package's and its callers' tests, mirroring the sqlite setupTestDB
// pattern used elsewhere in the codebase for gorm-backed suites. Production
// wiring always goes through New, which targets MySQL; sqlite here trades
// the "real database" fidelity for hermetic, parallel-safe test runs of
// the CAS and transaction logic, which sqlite's single-writer semantics
// exercise just as well.
func NewForTesting(tb testing.TB) *Store {
	tb.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open in-memory sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		tb.Fatalf("get raw db handle: %v", err)
	}
	// A single connection keeps every caller on the same in-memory
	// database; sqlite serializes writes through it regardless, which is
	// exactly the point for testing the Store's CAS primitives.
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(&models.Task{}, &models.TaskAttempt{}, &models.WorkerHeartbeat{}); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}

	s := &Store{conn: conn}
	tb.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return s
}
