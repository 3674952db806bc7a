// Package qa implements the question and answer operations.
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

const listColumns = `SELECT q.id, q.question_text, q.tags, q.created_at,
	(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count
	FROM questions q`

type Questions struct {
	db  db.Querier
	now func() time.Time
}

func NewQuestions(q db.Querier) *Questions {
	return &Questions{db: q, now: func() time.Time { return time.Now().UTC() }}
}

// List returns questions newest first. A non-empty search keeps rows whose
// text or tags contain it, ignoring case.
func (s *Questions) List(ctx context.Context, search string) ([]models.QuestionSummary, error) {
	query := listColumns
	var args []any
	if search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query += ` WHERE LOWER(q.question_text) LIKE LOWER(?) ESCAPE '\'
			OR LOWER(q.tags) LIKE LOWER(?) ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY q.id DESC"

	out := []models.QuestionSummary{}
	if err := s.db.Select(ctx, &out, query, args...); err != nil {
		return nil, apperr.Store("Failed to fetch questions from database", err)
	}
	return out, nil
}

// Create stores a question. Blank tags are stored as NULL.
func (s *Questions) Create(ctx context.Context, text, tags string) (models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Question{}, apperr.Validation("Question title is required.")
	}
	var tagsVal *string
	if t := strings.TrimSpace(tags); t != "" {
		tagsVal = &t
	}

	created := s.now()
	id, err := s.db.Insert(ctx,
		`INSERT INTO questions(question_text, tags, created_at) VALUES(?, ?, ?) RETURNING id`,
		text, tagsVal, created)
	if err != nil {
		return models.Question{}, apperr.Store("Failed to save question", err)
	}
	return models.Question{ID: id, Text: text, Tags: tagsVal, CreatedAt: created}, nil
}

func (s *Questions) Get(ctx context.Context, id int64) (models.QuestionDetail, error) {
	var q models.Question
	err := s.db.Get(ctx, &q, `SELECT id, question_text, tags, created_at FROM questions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QuestionDetail{}, apperr.NotFound("Question not found")
	} else if err != nil {
		return models.QuestionDetail{}, apperr.Store("Failed to fetch question from database", err)
	}

	answers := []models.Answer{}
	err = s.db.Select(ctx, &answers,
		`SELECT id, question_id, answer_text, created_at FROM answers WHERE question_id = ? ORDER BY id`, id)
	if err != nil {
		return models.QuestionDetail{}, apperr.Store("Failed to fetch answers from database", err)
	}
	return models.QuestionDetail{ID: q.ID, Text: q.Text, Tags: q.Tags, Answers: answers}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
