package helpers

import (
	"path/filepath"
	"testing"

	"github.com/xiaot623/gogo/chat/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// NewTestFileSQLiteStore opens a database file under t.TempDir with the
// production DSN shape, so the connection pool is exercised.
func NewTestFileSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	dsn, err := repository.FileDSN(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("failed to build dsn: %v", err)
	}
	s, err := repository.NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
