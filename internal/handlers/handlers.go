package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"askme/internal/apperr"
	"askme/internal/logging"
	"askme/internal/models"
)

const maxBodyBytes = 1 << 20

type QuestionService interface {
	List(ctx context.Context, search string) ([]models.QuestionSummary, error)
	Create(ctx context.Context, text, tags string) (models.Question, error)
	Get(ctx context.Context, id int64) (models.QuestionDetail, error)
}

type AnswerService interface {
	Create(ctx context.Context, questionID int64, text string) (models.Answer, error)
}

type AccountService interface {
	Register(ctx context.Context, username, email, password string) error
	Authenticate(ctx context.Context, username, password string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	questions QuestionService
	answers   AnswerService
	accounts  AccountService
	store     Pinger
	log       logrus.FieldLogger
}

func New(questions QuestionService, answers AnswerService, accounts AccountService, store Pinger, log logrus.FieldLogger) *Handler {
	return &Handler{questions: questions, answers: answers, accounts: accounts, store: store, log: log}
}

// -------- Questions

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	out, err := h.questions.List(r.Context(), search)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if search != "" {
		logging.FromContext(r.Context(), h.log).
			WithFields(logrus.Fields{"search": search, "results": len(out)}).
			Debug("question search")
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionTitle string  `json:"questionTitle"`
		Tags          tagText `json:"tags"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	q, err := h.questions.Create(r.Context(), body.QuestionTitle, string(body.Tags))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) QuestionByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, apperr.NotFound("Question not found"))
		return
	}
	q, err := h.questions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// tagText takes tags as free text. Numbers and booleans are kept as
// their literal JSON text; arrays and objects are rejected.
type tagText string

func (t *tagText) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*t = ""
	case string:
		*t = tagText(v)
	case float64, bool:
		*t = tagText(strings.TrimSpace(string(b)))
	default:
		return fmt.Errorf("tags must be text")
	}
	return nil
}

// -------- Answers

// questionRef accepts the id as a JSON number or a numeric string.
type questionRef int64

func (q *questionRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("question_id must be an integer")
	}
	*q = questionRef(n)
	return nil
}

func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionID questionRef `json:"question_id"`
		AnswerText string      `json:"answer_text"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	a, err := h.answers.Create(r.Context(), int64(body.QuestionID), body.AnswerText)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"id":          a.ID,
		"question_id": a.QuestionID,
		"answer_text": a.Text,
		"created_at":  a.CreatedAt,
	})
}

// -------- Accounts

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.accounts.Register(r.Context(), body.Username, body.Email, body.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context(), h.log).WithField("username", strings.TrimSpace(body.Username)).Info("user registered")
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	name, err := h.accounts.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful", "username": name})
}

// -------- Ops

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed"})
}

// --- helpers

// decode reads a JSON body into dst. An empty body decodes as {} so the
// services report which fields are missing.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	msg := "Invalid JSON body."
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		msg = "Request body too large."
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
	return false
}

// writeError is the only place service failures become status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	body := map[string]any{}

	var e *apperr.Error
	if errors.As(err, &e) && e.Kind != apperr.KindStore {
		body["error"] = e.Message
		if e.Details != nil {
			body["details"] = e.Details
		}
	} else {
		body["error"] = "Internal server error"
		if e != nil && e.Message != "" {
			body["error"] = e.Message
		}
		logging.FromContext(r.Context(), h.log).
			WithError(err).
			WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).
			Error("request failed")
	}
	writeJSON(w, status, body)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
