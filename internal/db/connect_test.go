package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	dbh, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func count(t *testing.T, dbh *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestOpenCreatesSchema(t *testing.T) {
	dbh := openTemp(t)
	for _, table := range []string{"users", "categories", "materials", "quizzes", "quiz_questions", "event_log"} {
		if n := count(t, dbh, table); n != 0 {
			t.Fatalf("%s: want empty, got %d", table, n)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		dbh, err := Open(context.Background(), DriverSQLite, "file:"+path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		_ = dbh.Close()
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("oracle"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	dbh := openTemp(t)
	_, err := dbh.Exec(`INSERT INTO materials (title, category_id, owner_id, file_path, created_at) VALUES ('x', 99, 99, 'p', 0)`)
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestWithTxCommitAndRollback(t *testing.T) {
	dbh := openTemp(t)
	ctx := context.Background()

	if err := WithTx(ctx, dbh, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES ('kept')`)
		return err
	}); err != nil {
		t.Fatalf("commit path: %v", err)
	}

	boom := errors.New("boom")
	err := WithTx(ctx, dbh, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if n := count(t, dbh, "categories"); n != 1 {
		t.Fatalf("categories = %d, want 1", n)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	dbh := openTemp(t)
	ctx := context.Background()
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = WithTx(ctx, dbh, nil, func(tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES ('p')`)
			panic("bad")
		})
	}()
	if n := count(t, dbh, "categories"); n != 0 {
		t.Fatalf("categories = %d, want 0", n)
	}
}
