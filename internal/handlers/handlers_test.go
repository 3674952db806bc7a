package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"askme/internal/apperr"
	"askme/internal/auth"
	"askme/internal/config"
	"askme/internal/db"
	"askme/internal/logging"
	"askme/internal/models"
	"askme/internal/qa"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	g, err := db.Open(config.DB{Driver: config.DriverSQLite, Path: ":memory:"}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	require.NoError(t, db.Migrate(context.Background(), g))

	accounts, err := auth.NewManager(g, bcrypt.MinCost)
	require.NoError(t, err)

	log := logging.Discard()
	h := New(qa.NewQuestions(g), qa.NewAnswers(g), accounts, g, log)
	srv := httptest.NewServer(Router(h, log))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewReader([]byte(s))
	} else if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	var obj map[string]any
	_ = json.Unmarshal(buf.Bytes(), &obj)
	return resp.StatusCode, obj, buf.Bytes()
}

func TestQuestionAnswerFlow(t *testing.T) {
	srv := newServer(t)

	status, created, _ := do(t, srv, http.MethodPost, "/questions",
		map[string]any{"questionTitle": "Why?", "tags": "general"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Why?", created["question_text"])
	assert.Equal(t, "general", created["tags"])
	id := int64(created["id"].(float64))
	path := "/questions/" + strconv.FormatInt(id, 10)

	status, detail, _ := do(t, srv, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Why?", detail["question_text"])
	assert.Equal(t, "general", detail["tags"])
	assert.Equal(t, []any{}, detail["answers"])

	status, ans, _ := do(t, srv, http.MethodPost, "/answers",
		map[string]any{"question_id": id, "answer_text": "Because"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, ans["success"])
	assert.Equal(t, float64(id), ans["question_id"])
	assert.Equal(t, "Because", ans["answer_text"])
	assert.NotEmpty(t, ans["created_at"])

	status, detail, _ = do(t, srv, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	answers := detail["answers"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "Because", answers[0].(map[string]any)["answer_text"])

	status, _, raw := do(t, srv, http.MethodGet, "/questions?search=GENERAL", nil)
	require.Equal(t, http.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(1), list[0]["answer_count"])
	assert.Contains(t, list[0], "created_at")

	_, _, raw = do(t, srv, http.MethodGet, "/questions?search=zzz", nil)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestCreateQuestionWithoutTagsReturnsNull(t *testing.T) {
	srv := newServer(t)
	status, _, raw := do(t, srv, http.MethodPost, "/questions", map[string]any{"questionTitle": "Bare"})
	require.Equal(t, http.StatusOK, status)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	v, ok := got["tags"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestCreateQuestionTagsAcceptScalars(t *testing.T) {
	srv := newServer(t)

	status, body, _ := do(t, srv, http.MethodPost, "/questions", `{"questionTitle":"Numbers","tags":2024}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2024", body["tags"])

	status, body, _ = do(t, srv, http.MethodPost, "/questions", `{"questionTitle":"Flags","tags":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "true", body["tags"])

	status, body, _ = do(t, srv, http.MethodPost, "/questions", `{"questionTitle":"Null","tags":null}`)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["tags"])

	status, _, _ = do(t, srv, http.MethodPost, "/questions", `{"questionTitle":"List","tags":["a","b"]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = do(t, srv, http.MethodPost, "/answers", map[string]any{"question_id": -3, "answer_text": "hi"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidationAndNotFound(t *testing.T) {
	srv := newServer(t)

	status, body, _ := do(t, srv, http.MethodPost, "/questions", map[string]any{"tags": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Question title is required.", body["error"])

	status, body, _ = do(t, srv, http.MethodPost, "/answers", map[string]any{"answer_text": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
	details := body["details"].(map[string]any)
	assert.Equal(t, "Question ID is required", details["question_id"])
	assert.Nil(t, details["answer_text"])

	status, _, _ = do(t, srv, http.MethodPost, "/answers", map[string]any{"question_id": "99", "answer_text": "hi"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body, _ = do(t, srv, http.MethodGet, "/questions/99", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Question not found", body["error"])

	status, _, _ = do(t, srv, http.MethodGet, "/questions/abc", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = do(t, srv, http.MethodPost, "/questions", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = do(t, srv, http.MethodPost, "/signup", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = do(t, srv, http.MethodDelete, "/questions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestSignupLogin(t *testing.T) {
	srv := newServer(t)

	status, body, _ := do(t, srv, http.MethodPost, "/signup",
		map[string]any{"username": "alice", "email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	status, _, _ = do(t, srv, http.MethodPost, "/signup",
		map[string]any{"username": "alice", "email": "b@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, status)
	status, body, _ = do(t, srv, http.MethodPost, "/signup",
		map[string]any{"username": "bob", "email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Email already exists.", body["error"])

	status, body, raw := do(t, srv, http.MethodPost, "/login",
		map[string]any{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, string(raw), "password")

	_, _, wrongPass := do(t, srv, http.MethodPost, "/login",
		map[string]any{"username": "alice", "password": "secretX"})
	status, _, noUser := do(t, srv, http.MethodPost, "/login",
		map[string]any{"username": "nobody", "password": "secretX"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, string(wrongPass), string(noUser))

	status, _, _ = do(t, srv, http.MethodPost, "/login", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRequestIDAndHealth(t *testing.T) {
	srv := newServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

type failingQuestions struct{ err error }

func (f failingQuestions) List(context.Context, string) ([]models.QuestionSummary, error) {
	return nil, f.err
}

func (f failingQuestions) Create(context.Context, string, string) (models.Question, error) {
	panic("boom")
}

func (f failingQuestions) Get(context.Context, int64) (models.QuestionDetail, error) {
	return models.QuestionDetail{}, f.err
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newFailingServer(t *testing.T, err error) *httptest.Server {
	t.Helper()
	log := logging.Discard()
	srv := httptest.NewServer(Router(New(failingQuestions{err: err}, nil, nil, downStore{}, log), log))
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreFailuresAreGeneric(t *testing.T) {
	srv := newFailingServer(t, errors.New("pq: password authentication failed for user root"))

	status, body, raw := do(t, srv, http.MethodGet, "/questions", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, string(raw), "pq:")

	status, body, _ = do(t, srv, http.MethodPost, "/questions", map[string]any{"questionTitle": "x"})
	assert.Equal(t, http.StatusInternalServerError, status, "panics are recovered")
	assert.Equal(t, "Internal server error", body["error"])

	status, body, _ = do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])

	srv = newFailingServer(t, apperr.Store("Failed to fetch question from database", errors.New("disk full")))
	status, body, raw = do(t, srv, http.MethodGet, "/questions/1", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to fetch question from database", body["error"])
	assert.NotContains(t, string(raw), "disk full")
}
