package material

// Material is a lecturer-uploaded learning resource.
type Material struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CategoryID  int64  `json:"category_id"`
	OwnerID     int64  `json:"owner_id"`
	FilePath    string `json:"file_path"`
	FileType    string `json:"file_type"`
	QuizEnabled bool   `json:"quiz_enabled"`
	CreatedAt   int64  `json:"created_at"`
}

// Fields are the lecturer-editable metadata of a material.
type Fields struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=10000"`
	CategoryID  int64  `json:"category_id" validate:"gt=0"`
}

// Quiz is the optional assessment attached to exactly one material.
type Quiz struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	CategoryID int64  `json:"category_id"`
	CreatorID  int64  `json:"created_by"`
	MaterialID int64  `json:"material_id"`
}

// Question is a persisted multiple-choice question.
type Question struct {
	ID            int64    `json:"id"`
	QuizID        int64    `json:"quiz_id"`
	Text          string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// CategoryQuestion is a question listed across all of an owner's quizzes in
// one category.
type CategoryQuestion struct {
	Question
	MaterialID int64 `json:"material_id"`
}

func quizTitle(materialTitle string) string { return materialTitle + " Quiz" }
