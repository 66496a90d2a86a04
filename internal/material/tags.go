package material

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Tag is the per-question edit intent sent by the editing surface.
type Tag string

const (
	TagNew      Tag = "new"
	TagExisting Tag = "existing"
	TagUpdated  Tag = "updated"
	TagDeleted  Tag = "deleted"
)

// Draft is the content of a question that is about to be written.
type Draft struct {
	Text          string   `json:"question_text" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required,len=1"`
}

// Change is one tagged question of an edit. The set of implementations is
// closed: NewQuestion, ExistingQuestion, UpdatedQuestion, DeletedQuestion.
type Change interface {
	Tag() Tag
	change()
}

type NewQuestion struct{ Draft }

type ExistingQuestion struct{ ID int64 }

type UpdatedQuestion struct {
	ID int64
	Draft
}

type DeletedQuestion struct{ ID int64 }

func (NewQuestion) Tag() Tag      { return TagNew }
func (ExistingQuestion) Tag() Tag { return TagExisting }
func (UpdatedQuestion) Tag() Tag  { return TagUpdated }
func (DeletedQuestion) Tag() Tag  { return TagDeleted }

func (NewQuestion) change()      {}
func (ExistingQuestion) change() {}
func (UpdatedQuestion) change()  {}
func (DeletedQuestion) change()  {}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	return validate
}

// normalize trims whitespace so blank strings fail "required".
func (d Draft) normalize() Draft {
	out := Draft{
		Text:          strings.TrimSpace(d.Text),
		Options:       make([]string, len(d.Options)),
		CorrectAnswer: strings.ToUpper(strings.TrimSpace(d.CorrectAnswer)),
	}
	for i, o := range d.Options {
		out.Options[i] = strings.TrimSpace(o)
	}
	return out
}

// Validate checks a normalized draft. The correct answer must be a letter
// naming one of the options, A for the first.
func (d Draft) Validate() error {
	if err := validatorInstance().Struct(d); err != nil {
		return payloadError("%v", err)
	}
	idx := int(d.CorrectAnswer[0]) - 'A'
	if idx < 0 || idx >= len(d.Options) {
		return payloadError("correct_answer %q does not name one of %d options", d.CorrectAnswer, len(d.Options))
	}
	return nil
}

// ValidateFields normalizes and checks material metadata.
func ValidateFields(f Fields) (Fields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	if err := validatorInstance().Struct(f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}
	return f, nil
}

// wireQuestion is the JSON shape produced by the editing surface.
type wireQuestion struct {
	ID            *int64          `json:"id"`
	Text          string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Status        Tag             `json:"_status"`
}

func (w wireQuestion) draft(i int) (Draft, error) {
	var opts []string
	raw := bytes.TrimSpace(w.Options)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Draft{}, payloadError("question %d: options missing", i)
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return Draft{}, payloadError("question %d: options must be a list of strings", i)
	}
	d := Draft{Text: w.Text, Options: opts, CorrectAnswer: w.CorrectAnswer}.normalize()
	if err := d.Validate(); err != nil {
		return Draft{}, fmt.Errorf("question %d: %w", i, err)
	}
	return d, nil
}

// DecodeChanges parses a tagged question list. Every error wraps
// ErrInvalidQuizPayload. Untagged items are New when they carry no id and
// Existing when they do.
func DecodeChanges(raw []byte) ([]Change, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var items []wireQuestion
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, payloadError("questions must be a JSON array: %v", err)
	}
	out := make([]Change, 0, len(items))
	for i, w := range items {
		c, err := w.change(i)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (w wireQuestion) change(i int) (Change, error) {
	status := w.Status
	if status == "" {
		status = TagNew
		if w.ID != nil {
			status = TagExisting
		}
	}
	if status != TagNew && (w.ID == nil || *w.ID <= 0) {
		return nil, payloadError("question %d: %q requires a persisted id", i, status)
	}
	switch status {
	case TagNew:
		d, err := w.draft(i)
		if err != nil {
			return nil, err
		}
		return NewQuestion{Draft: d}, nil
	case TagExisting:
		return ExistingQuestion{ID: *w.ID}, nil
	case TagUpdated:
		d, err := w.draft(i)
		if err != nil {
			return nil, err
		}
		return UpdatedQuestion{ID: *w.ID, Draft: d}, nil
	case TagDeleted:
		return DeletedQuestion{ID: *w.ID}, nil
	default:
		return nil, payloadError("question %d: unknown _status %q", i, w.Status)
	}
}

// DecodeDrafts parses the question list of a create request. Tags are
// ignored; every item is a new question.
func DecodeDrafts(raw []byte) ([]Draft, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var items []wireQuestion
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, payloadError("questions must be a JSON array: %v", err)
	}
	out := make([]Draft, 0, len(items))
	for i, w := range items {
		d, err := w.draft(i)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// PrepareDrafts normalizes and validates drafts built in Go code.
func PrepareDrafts(in []Draft) ([]Draft, error) {
	out := make([]Draft, len(in))
	for i, d := range in {
		d = d.normalize()
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// PrepareChanges normalizes and validates changes built in Go code.
func PrepareChanges(in []Change) ([]Change, error) {
	out := make([]Change, len(in))
	for i, c := range in {
		switch v := c.(type) {
		case NewQuestion:
			d := v.Draft.normalize()
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("question %d: %w", i, err)
			}
			out[i] = NewQuestion{Draft: d}
		case UpdatedQuestion:
			if v.ID <= 0 {
				return nil, payloadError("question %d: updated requires a persisted id", i)
			}
			d := v.Draft.normalize()
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("question %d: %w", i, err)
			}
			out[i] = UpdatedQuestion{ID: v.ID, Draft: d}
		case ExistingQuestion:
			if v.ID <= 0 {
				return nil, payloadError("question %d: existing requires a persisted id", i)
			}
			out[i] = v
		case DeletedQuestion:
			if v.ID <= 0 {
				return nil, payloadError("question %d: deleted requires a persisted id", i)
			}
			out[i] = v
		case nil:
			return nil, payloadError("question %d: nil change", i)
		default:
			return nil, payloadError("question %d: unsupported change %T", i, c)
		}
	}
	return out, nil
}
