package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-materials/internal/db"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer dbh.Close()

	repo := &EventRepo{now: func() time.Time { return time.Unix(1700000000, 0) }}
	if err := repo.Append(ctx, dbh, TypeMaterialCreated, MaterialKey(7), 3, map[string]int{"questions": 2}); err != nil {
		t.Fatal(err)
	}

	// an event appended inside a rolled back transaction disappears with it
	rollback := errors.New("rollback")
	err = db.WithTx(ctx, dbh, nil, func(tx *sql.Tx) error {
		if err := repo.Append(ctx, tx, TypeMaterialEdited, MaterialKey(7), 3, nil); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("unexpected: %v", err)
	}

	events, err := repo.List(ctx, dbh, MaterialKey(7))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Type != TypeMaterialCreated || e.ActorID != 3 || e.DataJSON != `{"questions":2}` || e.CreatedAt != 1700000000 {
		t.Fatalf("unexpected event: %+v", e)
	}
}
