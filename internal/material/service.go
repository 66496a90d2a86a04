package material

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/mindengage-materials/internal/audit"
	"github.com/mind-engage/mindengage-materials/internal/db"
)

// Service runs create, edit and delete as single atomic units and exposes
// the owner-scoped reads the editing surface needs.
type Service struct {
	db     *sql.DB
	store  Store
	rec    Reconciler
	files  *Files
	events *audit.EventRepo
	log    *log.Logger
	now    func() time.Time
}

func NewService(dbh *sql.DB, files *Files, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		db:     dbh,
		files:  files,
		events: audit.NewEventRepo(),
		log:    logger,
		now:    time.Now,
	}
	s.rec = Reconciler{store: s.store, now: func() int64 { return s.now().Unix() }}
	return s
}

// Report describes a finished request.
type Report struct {
	MaterialID int64   `json:"material_id"`
	State      State   `json:"state"`
	FilePath   string  `json:"file_path,omitempty"`
	Quiz       Outcome `json:"quiz"`
}

func (s *Service) finish(r *run, materialID, ownerID int64, err error) {
	if err != nil {
		s.log.Printf("%s material=%d owner=%d state=%s: %v", r.op, materialID, ownerID, r.state, err)
		return
	}
	s.log.Printf("%s material=%d owner=%d state=%s", r.op, materialID, ownerID, r.state)
}

// abort moves a transacting run to ROLLED_BACK and drops the blob written
// for it, if any.
func (s *Service) abort(r *run, newPath string, cause error) *EditError {
	r.to(StateRolledBack)
	if newPath != "" {
		s.files.Discard(newPath, "rolled back")
	}
	return r.fail(ErrTransactionFailure, cause)
}

// CreateMaterial stores the file, then inserts the material and, when the
// quiz is enabled and questions were given, its quiz and questions in one
// batch. Invalid questions reject the request before anything is written.
func (s *Service) CreateMaterial(ctx context.Context, ownerID int64, f Fields, quizEnabled bool, questions []Draft, file Upload) (rep Report, err error) {
	r := newRun("create material")
	defer func() { rep.State = r.state; s.finish(r, rep.MaterialID, ownerID, err) }()

	r.to(StateValidating)
	if f, err = ValidateFields(f); err != nil {
		r.to(StateRejected)
		return rep, r.fail(ErrInvalidFields, err)
	}
	var drafts []Draft
	if quizEnabled {
		if drafts, err = PrepareDrafts(questions); err != nil {
			r.to(StateRejected)
			return rep, r.fail(ErrInvalidQuizPayload, err)
		}
	}
	if file.Body == nil {
		r.to(StateRejected)
		return rep, r.fail(ErrFileRequired, nil)
	}

	r.to(StateTransacting)
	ref, err := s.files.Store(file)
	if err != nil {
		return rep, s.abort(r, "", err)
	}

	m := Material{
		Title:       f.Title,
		Description: f.Description,
		CategoryID:  f.CategoryID,
		OwnerID:     ownerID,
		FilePath:    ref.Path,
		FileType:    ref.Type,
		QuizEnabled: quizEnabled,
		CreatedAt:   s.now().Unix(),
	}
	var out Outcome
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		id, err := s.store.CreateMaterial(ctx, tx, m)
		if err != nil {
			return err
		}
		m.ID = id
		if out, err = s.rec.Apply(ctx, tx, m, Plan{Inserts: drafts}); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, audit.TypeMaterialCreated, audit.MaterialKey(id), ownerID, out)
	})
	if err != nil {
		return rep, s.abort(r, ref.Path, err)
	}
	r.to(StateCommitted)
	r.to(StateFileSwapped)
	return Report{MaterialID: m.ID, FilePath: ref.Path, Quiz: out}, nil
}

// EditMaterial updates the material fields, reconciles the tagged
// questions and, when file is non-nil, swaps the file pointer, all in one
// transaction. The replaced file is removed only after commit.
func (s *Service) EditMaterial(ctx context.Context, materialID, ownerID int64, f Fields, quizEnabled bool, changes []Change, file *Upload) (rep Report, err error) {
	r := newRun("edit material")
	rep.MaterialID = materialID
	defer func() { rep.State = r.state; s.finish(r, materialID, ownerID, err) }()

	r.to(StateValidating)
	if f, err = ValidateFields(f); err != nil {
		r.to(StateRejected)
		return rep, r.fail(ErrInvalidFields, err)
	}
	if changes, err = PrepareChanges(changes); err != nil {
		r.to(StateRejected)
		return rep, r.fail(ErrInvalidQuizPayload, err)
	}
	plan, err := NewPlan(changes)
	if err != nil {
		r.to(StateRejected)
		return rep, r.fail(ErrInvalidQuizPayload, err)
	}

	r.to(StateTransacting)
	var newFile *FileRef
	if file != nil {
		ref, err := s.files.Store(*file)
		if err != nil {
			return rep, s.abort(r, "", err)
		}
		newFile = &ref
	}
	newPath := ""
	if newFile != nil {
		newPath = newFile.Path
	}

	var prev Material
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var err error
		if prev, err = s.store.GetMaterial(ctx, tx, materialID, ownerID); err != nil {
			return err
		}
		n, err := s.store.UpdateMaterial(ctx, tx, materialID, ownerID, f, quizEnabled, newFile)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		m := prev
		m.Title, m.Description, m.CategoryID, m.QuizEnabled = f.Title, f.Description, f.CategoryID, quizEnabled

		if rep.Quiz, err = s.rec.Apply(ctx, tx, m, plan); err != nil {
			return err
		}
		if m.Title != prev.Title || m.CategoryID != prev.CategoryID {
			if err := s.syncQuizTitle(ctx, tx, m); err != nil {
				return err
			}
		}
		return s.events.Append(ctx, tx, audit.TypeMaterialEdited, audit.MaterialKey(materialID), ownerID, rep.Quiz)
	})
	if err != nil {
		return rep, s.abort(r, newPath, err)
	}
	r.to(StateCommitted)

	rep.FilePath = prev.FilePath
	if newFile != nil {
		rep.FilePath = newFile.Path
		if prev.FilePath != newFile.Path {
			s.files.Discard(prev.FilePath, "replaced")
		}
	}
	r.to(StateFileSwapped)
	return rep, nil
}

func (s *Service) syncQuizTitle(ctx context.Context, q Querier, m Material) error {
	quiz, ok, err := s.store.FindQuizByMaterial(ctx, q, m.ID)
	if err != nil || !ok {
		return err
	}
	return s.store.RetitleQuiz(ctx, q, quiz.ID, quizTitle(m.Title), m.CategoryID)
}

// DeleteMaterial removes the questions, the quiz and the material row in
// one transaction, then unlinks the file. An unlink failure is logged and
// does not undo the delete.
func (s *Service) DeleteMaterial(ctx context.Context, materialID, ownerID int64) (rep Report, err error) {
	r := newRun("delete material")
	rep.MaterialID = materialID
	defer func() { rep.State = r.state; s.finish(r, materialID, ownerID, err) }()

	r.to(StateValidating)
	if materialID <= 0 || ownerID <= 0 {
		r.to(StateRejected)
		return rep, r.fail(ErrNotFound, nil)
	}

	r.to(StateTransacting)
	var m Material
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var err error
		if m, err = s.store.GetMaterial(ctx, tx, materialID, ownerID); err != nil {
			return err
		}
		quiz, ok, err := s.store.FindQuizByMaterial(ctx, tx, materialID)
		if err != nil {
			return err
		}
		if ok {
			n, err := s.store.DeleteQuestionsByQuiz(ctx, tx, quiz.ID)
			if err != nil {
				return err
			}
			if err := s.store.DeleteQuiz(ctx, tx, quiz.ID); err != nil {
				return err
			}
			rep.Quiz = Outcome{QuizID: quiz.ID, QuizDeleted: true, Deleted: int(n)}
		}
		n, err := s.store.DeleteMaterial(ctx, tx, materialID, ownerID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return s.events.Append(ctx, tx, audit.TypeMaterialDeleted, audit.MaterialKey(materialID), ownerID, rep.Quiz)
	})
	if err != nil {
		return rep, s.abort(r, "", err)
	}
	r.to(StateCommitted)
	s.files.Discard(m.FilePath, "material deleted")
	rep.FilePath = m.FilePath
	r.to(StateFileSwapped)
	return rep, nil
}

// Detail is a material together with its quiz questions.
type Detail struct {
	Material  Material   `json:"material"`
	Questions []Question `json:"questions"`
}

// GetMaterial loads an owned material and its questions in persisted-id order.
func (s *Service) GetMaterial(ctx context.Context, materialID, ownerID int64) (Detail, error) {
	m, err := s.store.GetMaterial(ctx, s.db, materialID, ownerID)
	if err != nil {
		return Detail{}, err
	}
	qs, err := s.store.ListQuestionsByMaterial(ctx, s.db, materialID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Material: m, Questions: qs}, nil
}

func (s *Service) ListMaterials(ctx context.Context, ownerID int64) ([]Material, error) {
	return s.store.ListMaterials(ctx, s.db, ownerID)
}

// QuestionsForMaterial serves a material's quiz to anyone allowed to view
// quizzes; it is not owner scoped.
func (s *Service) QuestionsForMaterial(ctx context.Context, materialID int64) ([]Question, error) {
	if materialID <= 0 {
		return nil, fmt.Errorf("material %d: %w", materialID, ErrNotFound)
	}
	return s.store.ListQuestionsByMaterial(ctx, s.db, materialID)
}

func (s *Service) QuizzesByCategory(ctx context.Context, categoryID, ownerID int64) ([]CategoryQuestion, error) {
	return s.store.ListQuestionsByCategory(ctx, s.db, categoryID, ownerID)
}
