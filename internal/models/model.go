package models

import "time"

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at"`
}

// Question is the stored row. Tags is nil when the author gave none.
type Question struct {
	ID        int64     `db:"id" json:"id"`
	Text      string    `db:"question_text" json:"question_text"`
	Tags      *string   `db:"tags" json:"tags"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// QuestionSummary is a list row.
type QuestionSummary struct {
	ID          int64     `db:"id" json:"id"`
	Text        string    `db:"question_text" json:"question_text"`
	Tags        *string   `db:"tags" json:"tags"`
	AnswerCount int64     `db:"answer_count" json:"answer_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// QuestionDetail is a question with its answers in creation order.
type QuestionDetail struct {
	ID      int64    `json:"id"`
	Text    string   `json:"question_text"`
	Tags    *string  `json:"tags"`
	Answers []Answer `json:"answers"`
}

type Answer struct {
	ID         int64     `db:"id" json:"id"`
	QuestionID int64     `db:"question_id" json:"-"`
	Text       string    `db:"answer_text" json:"answer_text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
