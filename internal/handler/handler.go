package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edugenai/insights/internal/filter"
	appI18n "github.com/edugenai/insights/internal/i18n"
	"github.com/edugenai/insights/internal/llm"
	"github.com/edugenai/insights/internal/model"
	"github.com/edugenai/insights/internal/report"
	"github.com/edugenai/insights/internal/similarity"
	"github.com/edugenai/insights/internal/store"
)

// Summarizer narrates a report. *llm.Client implements it.
type Summarizer interface {
	Summarize(ctx context.Context, view model.ViewState, r report.Report, language string) (*llm.Summary, error)
}

// Config holds presentation settings shared by all handlers.
type Config struct {
	// DateLayout overrides the locale's timeline date layout when set.
	DateLayout string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	reports *report.Service
	summary Summarizer
	config  Config
}

// New creates a new Handler. summary may be nil, in which case the summary
// endpoint answers 503.
func New(s *store.Store, reports *report.Service, summary Summarizer, cfg Config) (*Handler, error) {
	return &Handler{store: s, reports: reports, summary: summary, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/questions", h.handleQuestions)
		r.Get("/subjects", h.handleSubjects)
		r.Get("/report", h.handleReport)
		r.Get("/report/summary", h.handleSummary)
		r.Get("/feedbacks", h.handleFeedbacks)
		r.Get("/feedbacks/filter", h.handleFeedbacksFilter)
		r.Get("/feedbacks/subjects", h.handleFeedbackSubjects)
		r.Get("/students", h.handleStudents)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.QuestionCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"details": "Server Unavailable"})
		return
	}
	feedbacks, err := h.store.FeedbackCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"details": "Server Unavailable"})
		return
	}
	last, _ := h.store.LastSync(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"details":   "Running",
		"questions": questions,
		"feedbacks": feedbacks,
		"last_sync": last,
	})
}

type questionsResponse struct {
	Questions []model.Question `json:"questions"`
	Subjects  []string         `json:"subjects"`
	Count     int              `json:"count"`
	Repeated  int              `json:"repeated"`
	Message   string           `json:"message"`
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseQuestionCriteria(r.URL.Query())
	if err != nil {
		http.Error(w, viewErrorMessage(r.Context(), err), http.StatusBadRequest)
		return
	}
	all, err := h.store.ListQuestions(r.Context())
	if err != nil {
		slog.Error("list questions", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	annotated := similarity.Annotate(all)
	questions := filter.Questions(annotated, criteria)
	repeated := 0
	for _, q := range questions {
		if q.IsRepeated {
			repeated++
		}
	}
	writeJSON(w, http.StatusOK, questionsResponse{
		Questions: questions,
		Subjects:  filter.Subjects(all),
		Count:     len(questions),
		Repeated:  repeated,
		Message:   appI18n.Tp(r.Context(), "QuestionsFound", len(questions)),
	})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListQuestions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": filter.Subjects(all)})
}

func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (model.ViewState, report.Result, bool) {
	view, err := ParseView(r.URL.Query())
	if err != nil {
		http.Error(w, viewErrorMessage(r.Context(), err), http.StatusBadRequest)
		return view, report.Result{}, false
	}
	client := r.Header.Get("X-Client-ID")
	if client == "" {
		client = r.URL.Query().Get("client")
	}
	res, err := h.reports.Report(r.Context(), report.Request{
		Client: client,
		View:   view,
		Labels: appI18n.ChartLabels(r.Context(), h.config.DateLayout),
	})
	if err != nil {
		slog.Error("build report", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return view, res, false
	}
	return view, res, true
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	_, res, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.summary == nil {
		http.Error(w, appI18n.T(r.Context(), "SummaryUnavailable"), http.StatusServiceUnavailable)
		return
	}
	view, res, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = "English"
	}
	s, err := h.summary.Summarize(r.Context(), view, res.Report, language)
	if err != nil {
		slog.Error("summarize report", "error", err)
		http.Error(w, appI18n.T(r.Context(), "SummaryFailed"), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": s, "report": res})
}

func (h *Handler) handleFeedbacks(w http.ResponseWriter, r *http.Request) {
	fs, err := h.store.ListFeedbacksFiltered(r.Context(), r.URL.Query().Get("userid"), "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (h *Handler) handleFeedbacksFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := q.Get("subject")
	if model.IsAll(subject) {
		subject = ""
	}
	fs, err := h.store.ListFeedbacksFiltered(r.Context(), q.Get("userid"), subject)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (h *Handler) handleFeedbackSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.FeedbackSubjects(r.Context(), r.URL.Query().Get("userid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) handleStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
