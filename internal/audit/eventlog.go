package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeMaterialCreated = "material.created"
	TypeMaterialEdited  = "material.edited"
	TypeMaterialDeleted = "material.deleted"
)

type Event struct {
	Offset    int64
	Type      string
	Key       string
	ActorID   int64
	DataJSON  string
	CreatedAt int64
}

// Execer lets Append run on *sql.DB or inside a *sql.Tx, so an event
// commits or rolls back with the change it records.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type EventRepo struct{ now func() time.Time }

func NewEventRepo() *EventRepo { return &EventRepo{now: time.Now} }

// Append records an event; data is marshalled to JSON.
func (r *EventRepo) Append(ctx context.Context, q Execer, typ, key string, actorID int64, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("audit: marshal %s: %w", typ, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, actor_id, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		typ, key, actorID, string(b), r.now().Unix())
	if err != nil {
		return fmt.Errorf("audit: append %s: %w", typ, err)
	}
	return nil
}

// List returns the events for key in append order.
func (r *EventRepo) List(ctx context.Context, q Queryer, key string) ([]Event, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT "offset", typ, key, actor_id, data, created_at FROM event_log WHERE key=$1 ORDER BY "offset"`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.ActorID, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MaterialKey is the event key for a material id.
func MaterialKey(id int64) string { return fmt.Sprintf("material:%d", id) }
