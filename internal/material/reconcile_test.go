package material

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

// countingQuerier records every statement sent through it.
type countingQuerier struct {
	Querier
	calls int
}

func (c *countingQuerier) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	c.calls++
	return c.Querier.ExecContext(ctx, q, args...)
}

func (c *countingQuerier) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	c.calls++
	return c.Querier.QueryContext(ctx, q, args...)
}

func (c *countingQuerier) QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row {
	c.calls++
	return c.Querier.QueryRowContext(ctx, q, args...)
}

func TestNewPlanPartitions(t *testing.T) {
	d1 := draft("one", "A", "a", "b")
	d2 := draft("two", "B", "a", "b")
	p, err := NewPlan([]Change{
		ExistingQuestion{ID: 1},
		DeletedQuestion{ID: 2},
		NewQuestion{Draft: d1},
		UpdatedQuestion{ID: 3, Draft: d2},
		NewQuestion{Draft: d2},
		DeletedQuestion{ID: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Plan{
		Deletes:   []int64{2, 4},
		Updates:   []UpdatedQuestion{{ID: 3, Draft: d2}},
		Inserts:   []Draft{d1, d2},
		Untouched: []int64{1},
	}
	if !reflect.DeepEqual(p, want) {
		t.Fatalf("got %+v\nwant %+v", p, want)
	}
	if p.Empty() {
		t.Fatal("plan should not be empty")
	}
}

func TestNewPlanRejectsDuplicateIDs(t *testing.T) {
	_, err := NewPlan([]Change{UpdatedQuestion{ID: 5, Draft: draft("x", "A", "a", "b")}, DeletedQuestion{ID: 5}})
	if !errors.Is(err, ErrInvalidQuizPayload) {
		t.Fatalf("want ErrInvalidQuizPayload, got %v", err)
	}
}

func TestApplyUntouchedOnlyIssuesNoStatements(t *testing.T) {
	fx := newFixture(t)
	rep := fx.create(t, true, draft("q", "A", "a", "b"))
	qs := fx.questions(t, rep.MaterialID)

	plan, err := NewPlan([]Change{ExistingQuestion{ID: qs[0].ID}})
	if err != nil {
		t.Fatal(err)
	}
	cq := &countingQuerier{Querier: fx.db}
	out, err := fx.svc.rec.Apply(context.Background(), cq, fx.material(t, rep.MaterialID), plan)
	if err != nil {
		t.Fatal(err)
	}
	if cq.calls != 0 || out.Writes() != 0 {
		t.Fatalf("calls=%d writes=%d, want 0/0", cq.calls, out.Writes())
	}
}

func TestApplyNeverDeletesAcrossQuizzes(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, true, draft("a1", "A", "x", "y"))
	b := fx.create(t, true, draft("b1", "A", "x", "y"))
	foreign := fx.questions(t, b.MaterialID)[0]

	plan, _ := NewPlan([]Change{DeletedQuestion{ID: foreign.ID}})
	out, err := fx.svc.rec.Apply(context.Background(), fx.db, fx.material(t, a.MaterialID), plan)
	if err != nil {
		t.Fatal(err)
	}
	if out.Deleted != 0 {
		t.Fatalf("deleted = %d, want 0", out.Deleted)
	}
	if got := fx.questions(t, b.MaterialID); len(got) != 1 || got[0].ID != foreign.ID {
		t.Fatalf("foreign quiz changed: %+v", got)
	}
}

func TestApplyRejectsUpdateOfForeignQuestion(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, true, draft("a1", "A", "x", "y"))
	b := fx.create(t, true, draft("b1", "A", "x", "y"))
	noQuiz := fx.create(t, false)
	foreign := fx.questions(t, b.MaterialID)[0]

	plan, _ := NewPlan([]Change{UpdatedQuestion{ID: foreign.ID, Draft: draft("hijack", "A", "x", "y")}})
	for _, id := range []int64{a.MaterialID, noQuiz.MaterialID} {
		_, err := fx.svc.rec.Apply(context.Background(), fx.db, fx.material(t, id), plan)
		if !errors.Is(err, ErrUnknownQuestion) {
			t.Fatalf("material %d: want ErrUnknownQuestion, got %v", id, err)
		}
	}
	if got := fx.questions(t, b.MaterialID)[0]; got.Text != "b1" {
		t.Fatalf("foreign question rewritten: %+v", got)
	}
}

func TestApplyDeleteWithoutQuizIsNoop(t *testing.T) {
	fx := newFixture(t)
	rep := fx.create(t, false)
	plan, _ := NewPlan([]Change{DeletedQuestion{ID: 42}})
	out, err := fx.svc.rec.Apply(context.Background(), fx.db, fx.material(t, rep.MaterialID), plan)
	if err != nil || out.Writes() != 0 || out.QuizID != 0 {
		t.Fatalf("out=%+v err=%v", out, err)
	}
}

func TestApplyDropsEmptyQuizWhenDisabled(t *testing.T) {
	fx := newFixture(t)
	rep := fx.create(t, true, draft("only", "A", "x", "y"))
	q := fx.questions(t, rep.MaterialID)[0]

	m := fx.material(t, rep.MaterialID)
	m.QuizEnabled = false
	plan, _ := NewPlan([]Change{DeletedQuestion{ID: q.ID}})
	out, err := fx.svc.rec.Apply(context.Background(), fx.db, m, plan)
	if err != nil {
		t.Fatal(err)
	}
	if !out.QuizDeleted || fx.count(t, "quizzes") != 0 {
		t.Fatalf("quiz not dropped: %+v", out)
	}
}

func TestApplyKeepsEmptyQuizWhenEnabled(t *testing.T) {
	fx := newFixture(t)
	rep := fx.create(t, true, draft("only", "A", "x", "y"))
	q := fx.questions(t, rep.MaterialID)[0]

	plan, _ := NewPlan([]Change{DeletedQuestion{ID: q.ID}})
	out, err := fx.svc.rec.Apply(context.Background(), fx.db, fx.material(t, rep.MaterialID), plan)
	if err != nil {
		t.Fatal(err)
	}
	if out.QuizDeleted || fx.count(t, "quizzes") != 1 || fx.count(t, "quiz_questions") != 0 {
		t.Fatalf("unexpected: %+v", out)
	}
}
