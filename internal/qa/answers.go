package qa

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"askme/internal/apperr"
	"askme/internal/db"
	"askme/internal/models"
)

type Answers struct {
	db  db.Querier
	now func() time.Time
}

func NewAnswers(q db.Querier) *Answers {
	return &Answers{db: q, now: func() time.Time { return time.Now().UTC() }}
}

// Create adds an answer after confirming the question exists. Nothing is
// inserted when the question is missing. Only a zero id counts as absent;
// negative ids are simply unknown questions.
func (s *Answers) Create(ctx context.Context, questionID int64, text string) (models.Answer, error) {
	text = strings.TrimSpace(text)
	if questionID == 0 || text == "" {
		details := map[string]any{"question_id": nil, "answer_text": nil}
		if questionID == 0 {
			details["question_id"] = "Question ID is required"
		}
		if text == "" {
			details["answer_text"] = "Answer text is required"
		}
		return models.Answer{}, apperr.ValidationFields("Missing required fields", details)
	}

	var found int64
	err := s.db.Get(ctx, &found, `SELECT id FROM questions WHERE id = ?`, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Answer{}, apperr.NotFound("Question not found")
	} else if err != nil {
		return models.Answer{}, apperr.Store("Failed to verify question existence", err)
	}

	created := s.now()
	id, err := s.db.Insert(ctx,
		`INSERT INTO answers(question_id, answer_text, created_at) VALUES(?, ?, ?) RETURNING id`,
		questionID, text, created)
	if db.ForeignKeyViolation(err) {
		return models.Answer{}, apperr.NotFound("Question not found")
	} else if err != nil {
		return models.Answer{}, apperr.Store("Failed to save answer to database", err)
	}
	return models.Answer{ID: id, QuestionID: questionID, Text: text, CreatedAt: created}, nil
}
