package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"askme/internal/metrics"
)

// Router wires the API routes and the middleware chain.
func Router(h *Handler, log logrus.FieldLogger) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Instrument)

	r.HandleFunc("/questions", h.ListQuestions).Methods(http.MethodGet)
	r.HandleFunc("/questions", h.CreateQuestion).Methods(http.MethodPost)
	r.HandleFunc("/questions/{id}", h.QuestionByID).Methods(http.MethodGet)
	r.HandleFunc("/answers", h.CreateAnswer).Methods(http.MethodPost)
	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	var handler http.Handler = r
	handler = cors.AllowAll().Handler(handler)
	handler = WithRequestLog(handler, log)
	return WithRecover(handler, log)
}
