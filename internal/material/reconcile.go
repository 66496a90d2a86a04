package material

import (
	"context"
	"fmt"
)

// Plan is a tagged submission partitioned by intent.
type Plan struct {
	Deletes   []int64
	Updates   []UpdatedQuestion
	Inserts   []Draft
	Untouched []int64
}

// Empty reports whether applying the plan writes nothing.
func (p Plan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Updates) == 0 && len(p.Inserts) == 0
}

// NewPlan partitions changes, keeping submission order within each group.
// A persisted id may appear only once.
func NewPlan(changes []Change) (Plan, error) {
	var p Plan
	seen := make(map[int64]Tag, len(changes))
	claim := func(id int64, t Tag) error {
		if prev, dup := seen[id]; dup {
			return payloadError("question %d submitted twice (%s, %s)", id, prev, t)
		}
		seen[id] = t
		return nil
	}
	for _, c := range changes {
		switch v := c.(type) {
		case NewQuestion:
			p.Inserts = append(p.Inserts, v.Draft)
		case ExistingQuestion:
			if err := claim(v.ID, TagExisting); err != nil {
				return Plan{}, err
			}
			p.Untouched = append(p.Untouched, v.ID)
		case UpdatedQuestion:
			if err := claim(v.ID, TagUpdated); err != nil {
				return Plan{}, err
			}
			p.Updates = append(p.Updates, v)
		case DeletedQuestion:
			if err := claim(v.ID, TagDeleted); err != nil {
				return Plan{}, err
			}
			p.Deletes = append(p.Deletes, v.ID)
		}
	}
	return p, nil
}

// Outcome summarizes what Apply wrote.
type Outcome struct {
	QuizID      int64   `json:"quiz_id,omitempty"`
	QuizCreated bool    `json:"quiz_created,omitempty"`
	QuizDeleted bool    `json:"quiz_deleted,omitempty"`
	Inserted    []int64 `json:"inserted,omitempty"`
	Updated     int     `json:"updated"`
	Deleted     int     `json:"deleted"`
}

// Writes counts quiz and question rows changed.
func (o Outcome) Writes() int {
	n := len(o.Inserted) + o.Updated + o.Deleted
	if o.QuizCreated {
		n++
	}
	if o.QuizDeleted {
		n++
	}
	return n
}

// Reconciler applies a Plan to the quiz of one material.
type Reconciler struct {
	store Store
	now   func() int64
}

// Apply makes the persisted questions of m's quiz match plan, through q.
// m must already carry the edited title, category and quiz flag. The quiz
// row is created only when there is something to insert.
func (r Reconciler) Apply(ctx context.Context, q Querier, m Material, plan Plan) (Outcome, error) {
	var out Outcome
	if plan.Empty() {
		return out, nil
	}
	quiz, haveQuiz, err := r.store.FindQuizByMaterial(ctx, q, m.ID)
	if err != nil {
		return out, err
	}
	if haveQuiz {
		out.QuizID = quiz.ID
	}

	// with no quiz there is nothing to delete
	if haveQuiz {
		for _, id := range plan.Deletes {
			n, err := r.store.DeleteQuestion(ctx, q, quiz.ID, id)
			if err != nil {
				return out, err
			}
			out.Deleted += int(n)
		}
	}

	for _, u := range plan.Updates {
		if !haveQuiz {
			return out, fmt.Errorf("update question %d: %w", u.ID, ErrUnknownQuestion)
		}
		n, err := r.store.UpdateQuestion(ctx, q, quiz.ID, u.ID, u.Draft)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, fmt.Errorf("update question %d: %w", u.ID, ErrUnknownQuestion)
		}
		out.Updated += int(n)
	}

	if len(plan.Inserts) > 0 {
		if !haveQuiz {
			quiz = Quiz{
				Title:      quizTitle(m.Title),
				CategoryID: m.CategoryID,
				CreatorID:  m.OwnerID,
				MaterialID: m.ID,
			}
			if quiz.ID, err = r.store.CreateQuiz(ctx, q, quiz, r.now()); err != nil {
				return out, err
			}
			haveQuiz = true
			out.QuizID, out.QuizCreated = quiz.ID, true
		}
		ids, err := r.store.InsertQuestions(ctx, q, quiz.ID, plan.Inserts)
		if err != nil {
			return out, err
		}
		out.Inserted = ids
	}

	// a quiz-disabled material whose last questions were just deleted
	// drops its empty quiz row
	if haveQuiz && !m.QuizEnabled && out.Deleted > 0 && len(plan.Inserts) == 0 {
		left, err := r.store.ListQuestionsByQuiz(ctx, q, quiz.ID)
		if err != nil {
			return out, err
		}
		if len(left) == 0 {
			if err := r.store.DeleteQuiz(ctx, q, quiz.ID); err != nil {
				return out, err
			}
			out.QuizDeleted = true
		}
	}
	return out, nil
}
