package material

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Querier is satisfied by *sql.DB and *sql.Tx. Store methods never open or
// finish a transaction; the caller passes the handle in.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is typed access to the materials, quizzes and quiz_questions
// tables. It holds no state and no business rules.
type Store struct{}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (Store) CreateMaterial(ctx context.Context, q Querier, m Material) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO materials (title, description, category_id, owner_id, file_path, file_type, quiz_enabled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		m.Title, nullString(m.Description), m.CategoryID, m.OwnerID, m.FilePath, m.FileType, m.QuizEnabled, m.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create material: %w", classify(err))
	}
	return id, nil
}

// FileRef points a material at a stored file.
type FileRef struct {
	Path string
	Type string
}

// UpdateMaterial rewrites the editable fields of a material owned by
// ownerID. The file columns change only when file is non-nil. Zero affected
// rows means "not found or not owned".
func (Store) UpdateMaterial(ctx context.Context, q Querier, id, ownerID int64, f Fields, quizEnabled bool, file *FileRef) (int64, error) {
	var path, typ sql.NullString
	if file != nil {
		path = sql.NullString{String: file.Path, Valid: true}
		typ = sql.NullString{String: file.Type, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		UPDATE materials
		   SET title=$1, description=$2, category_id=$3, quiz_enabled=$4,
		       file_path=COALESCE($5, file_path), file_type=COALESCE($6, file_type)
		 WHERE id=$7 AND owner_id=$8`,
		f.Title, nullString(f.Description), f.CategoryID, quizEnabled, path, typ, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("update material: %w", classify(err))
	}
	return res.RowsAffected()
}

const materialColumns = `id, title, description, category_id, owner_id, file_path, file_type, quiz_enabled, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanMaterial(row scanner) (Material, error) {
	var m Material
	var desc sql.NullString
	err := row.Scan(&m.ID, &m.Title, &desc, &m.CategoryID, &m.OwnerID, &m.FilePath, &m.FileType, &m.QuizEnabled, &m.CreatedAt)
	m.Description = desc.String
	return m, err
}

func (Store) GetMaterial(ctx context.Context, q Querier, id, ownerID int64) (Material, error) {
	m, err := scanMaterial(q.QueryRowContext(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id=$1 AND owner_id=$2`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, ErrNotFound
	}
	if err != nil {
		return Material{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// ListMaterials returns the owner's materials, newest first.
func (Store) ListMaterials(ctx context.Context, q Querier, ownerID int64) ([]Material, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()
	out := []Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (Store) DeleteMaterial(ctx context.Context, q Querier, id, ownerID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM materials WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete material: %w", classify(err))
	}
	return res.RowsAffected()
}

// FindQuizByMaterial returns the material's quiz; ok is false when none
// has been created yet.
func (Store) FindQuizByMaterial(ctx context.Context, q Querier, materialID int64) (quiz Quiz, ok bool, err error) {
	var cat sql.NullInt64
	err = q.QueryRowContext(ctx,
		`SELECT id, title, category_id, created_by, material_id FROM quizzes WHERE material_id=$1`, materialID).
		Scan(&quiz.ID, &quiz.Title, &cat, &quiz.CreatorID, &quiz.MaterialID)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, false, nil
	}
	if err != nil {
		return Quiz{}, false, fmt.Errorf("find quiz: %w", err)
	}
	quiz.CategoryID = cat.Int64
	return quiz, true, nil
}

func (Store) CreateQuiz(ctx context.Context, q Querier, quiz Quiz, createdAt int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO quizzes (title, category_id, created_by, material_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		quiz.Title, quiz.CategoryID, quiz.CreatorID, quiz.MaterialID, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create quiz: %w", classify(err))
	}
	return id, nil
}

// RetitleQuiz keeps the derived quiz title and category in step with the material.
func (Store) RetitleQuiz(ctx context.Context, q Querier, quizID int64, title string, categoryID int64) error {
	_, err := q.ExecContext(ctx, `UPDATE quizzes SET title=$1, category_id=$2 WHERE id=$3`, title, categoryID, quizID)
	if err != nil {
		return fmt.Errorf("retitle quiz: %w", classify(err))
	}
	return nil
}

func (Store) DeleteQuiz(ctx context.Context, q Querier, quizID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", classify(err))
	}
	return nil
}

func encodeOptions(opts []string) (string, error) {
	b, err := json.Marshal(opts)
	return string(b), err
}

func (Store) InsertQuestion(ctx context.Context, q Querier, quizID int64, d Draft) (int64, error) {
	opts, err := encodeOptions(d.Options)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx, `
		INSERT INTO quiz_questions (quiz_id, question_text, options, correct_answer)
		VALUES ($1,$2,$3,$4)
		RETURNING id`,
		quizID, d.Text, opts, d.CorrectAnswer,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", classify(err))
	}
	return id, nil
}

// InsertQuestions writes all drafts in one multi-row statement.
func (Store) InsertQuestions(ctx context.Context, q Querier, quizID int64, ds []Draft) ([]int64, error) {
	if len(ds) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO quiz_questions (quiz_id, question_text, options, correct_answer) VALUES `)
	args := make([]any, 0, len(ds)*4)
	for i, d := range ds {
		opts, err := encodeOptions(d.Options)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4)
		args = append(args, quizID, d.Text, opts, d.CorrectAnswer)
	}
	sb.WriteString(` RETURNING id`)

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("insert questions: %w", classify(err))
	}
	defer rows.Close()
	ids := make([]int64, 0, len(ds))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert questions: %w", classify(err))
	}
	return ids, nil
}

// UpdateQuestion rewrites a question in place. The statement is scoped to
// quizID so a foreign id never touches another quiz.
func (Store) UpdateQuestion(ctx context.Context, q Querier, quizID, id int64, d Draft) (int64, error) {
	opts, err := encodeOptions(d.Options)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE quiz_questions
		   SET question_text=$1, options=$2, correct_answer=$3
		 WHERE id=$4 AND quiz_id=$5`,
		d.Text, opts, d.CorrectAnswer, id, quizID)
	if err != nil {
		return 0, fmt.Errorf("update question: %w", classify(err))
	}
	return res.RowsAffected()
}

// DeleteQuestion removes one question of quizID; ids of other quizzes are
// left alone and report zero rows.
func (Store) DeleteQuestion(ctx context.Context, q Querier, quizID, id int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id=$1 AND quiz_id=$2`, id, quizID)
	if err != nil {
		return 0, fmt.Errorf("delete question: %w", classify(err))
	}
	return res.RowsAffected()
}

func (Store) DeleteQuestionsByQuiz(ctx context.Context, q Querier, quizID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return 0, fmt.Errorf("delete questions: %w", classify(err))
	}
	return res.RowsAffected()
}

func scanQuestion(row scanner, extra ...any) (Question, error) {
	var qq Question
	var opts string
	dest := append([]any{&qq.ID, &qq.QuizID, &qq.Text, &opts, &qq.CorrectAnswer}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &qq.Options); err != nil {
		return Question{}, fmt.Errorf("question %d: options: %w", qq.ID, err)
	}
	return qq, nil
}

// ListQuestionsByQuiz returns the quiz's questions in persisted-id order.
func (Store) ListQuestionsByQuiz(ctx context.Context, q Querier, quizID int64) ([]Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, quiz_id, question_text, options, correct_answer
		  FROM quiz_questions
		 WHERE quiz_id=$1
		 ORDER BY id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		qq, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

// ListQuestionsByMaterial is ListQuestionsByQuiz keyed by material; a
// material without a quiz has no questions.
func (s Store) ListQuestionsByMaterial(ctx context.Context, q Querier, materialID int64) ([]Question, error) {
	quiz, ok, err := s.FindQuizByMaterial(ctx, q, materialID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Question{}, nil
	}
	return s.ListQuestionsByQuiz(ctx, q, quiz.ID)
}

// ListQuestionsByCategory lists every question of the owner's quizzes in
// one category, ordered by quiz then question id.
func (Store) ListQuestionsByCategory(ctx context.Context, q Querier, categoryID, ownerID int64) ([]CategoryQuestion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT qq.id, qq.quiz_id, qq.question_text, qq.options, qq.correct_answer, z.material_id
		  FROM quizzes z
		  JOIN quiz_questions qq ON qq.quiz_id = z.id
		 WHERE z.category_id=$1 AND z.created_by=$2
		 ORDER BY z.id, qq.id`, categoryID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list category questions: %w", err)
	}
	defer rows.Close()
	out := []CategoryQuestion{}
	for rows.Next() {
		var cq CategoryQuestion
		qq, err := scanQuestion(rows, &cq.MaterialID)
		if err != nil {
			return nil, err
		}
		cq.Question = qq
		out = append(out, cq)
	}
	return out, rows.Err()
}
