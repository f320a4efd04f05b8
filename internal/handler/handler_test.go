package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	appI18n "github.com/edugenai/insights/internal/i18n"
	"github.com/edugenai/insights/internal/llm"
	"github.com/edugenai/insights/internal/metrics"
	"github.com/edugenai/insights/internal/model"
	"github.com/edugenai/insights/internal/report"
	"github.com/edugenai/insights/internal/store"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeSummarizer struct {
	err  error
	view model.ViewState
}

func (f *fakeSummarizer) Summarize(_ context.Context, view model.ViewState, _ report.Report, _ string) (*llm.Summary, error) {
	f.view = view
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Summary{Headline: "Steady progress"}, nil
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	qs := []model.Question{
		{ID: "q1", Text: "What is the derivative of x squared with respect to x?", Type: model.TypeShortAnswer, Subject: "Math", Difficulty: model.DifficultyEasy},
		{ID: "q2", Text: "What is the derivative of x squared with respect to x? Show work.", Type: model.TypeEssay, Subject: "Math", Difficulty: model.DifficultyHard},
		{ID: "q3", Text: "Name the noble gases.", Type: model.TypeMCQ, Subject: "Chemistry", Options: []string{"He", "Fe"}},
	}
	if err := s.InsertQuestions(ctx, qs); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fs := []model.Feedback{
		{ID: "f1", UserID: "u1", Subject: "Math", TotalScore: 8, MaxScore: 10, GradePercentage: 80, Timestamp: base.Add(48 * time.Hour),
			DetailedResults: []model.QuestionResult{{QuestionNumber: 1, Score: 4, Points: 5}}},
		{ID: "f2", UserID: "u1", Subject: "Math", TotalScore: 6, MaxScore: 10, GradePercentage: 60, Timestamp: base,
			DetailedResults: []model.QuestionResult{{QuestionNumber: 1, Score: 2, Points: 5}}},
		{ID: "f3", UserID: "u2", Subject: "Chemistry", TotalScore: 9, MaxScore: 10, GradePercentage: 90, Timestamp: base.Add(24 * time.Hour)},
	}
	if err := s.InsertFeedbacks(ctx, fs); err != nil {
		t.Fatalf("InsertFeedbacks: %v", err)
	}
	if err := s.UpsertStudents(ctx, []model.Student{{UserID: "u1", Name: "Ada", Email: "ada@example.com"}}); err != nil {
		t.Fatalf("UpsertStudents: %v", err)
	}
	return s
}

func newTestServer(t *testing.T, sum Summarizer, opts RouterOptions) (*httptest.Server, *store.Store) {
	t.Helper()
	s := seedStore(t)
	var obs report.Observer
	if opts.Metrics != nil {
		obs = opts.Metrics
	}
	h, err := New(s, report.NewService(s, obs), sum, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(NewRouter(h, opts))
	t.Cleanup(srv.Close)
	return srv, s
}

func getJSON(t *testing.T, rawURL string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", rawURL, err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	var body map[string]any
	resp := getJSON(t, srv.URL+"/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["details"] != "Running" || body["questions"] != float64(3) || body["feedbacks"] != float64(3) {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestQuestions(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})

	tests := []struct {
		name     string
		query    string
		wantIDs  []string
		repeated int
	}{
		{"all", "", []string{"q1", "q2", "q3"}, 2},
		{"subject contains", "subject=mat", []string{"q1", "q2"}, 2},
		{"search", "q=noble", []string{"q3"}, 0},
		{"types", "types=MCQ,Essay", []string{"q2", "q3"}, 1},
		{"empty types", "types=", []string{}, 0},
		{"difficulty", "difficulty=Hard", []string{"q2"}, 1},
		{"exact subject", "subject=math&match=exact", []string{"q1", "q2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body questionsResponse
			resp := getJSON(t, srv.URL+"/api/v1/questions?"+tt.query, &body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			ids := []string{}
			for _, q := range body.Questions {
				ids = append(ids, q.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids: expected %v, got %v", tt.wantIDs, ids)
			}
			if body.Count != len(tt.wantIDs) || body.Repeated != tt.repeated {
				t.Errorf("count=%d repeated=%d, expected %d and %d", body.Count, body.Repeated, len(tt.wantIDs), tt.repeated)
			}
			if len(body.Subjects) != 2 {
				t.Errorf("expected 2 subjects, got %v", body.Subjects)
			}
		})
	}
}

func TestQuestionsRepetitionAnnotations(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	var body questionsResponse
	getJSON(t, srv.URL+"/api/v1/questions?q=derivative", &body)
	if len(body.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(body.Questions))
	}
	for _, q := range body.Questions {
		if q.RepetitionCount != 2 || !q.IsRepeated || q.RepetitionLevel != model.RepetitionRepeated {
			t.Errorf("question %s: unexpected annotations %+v", q.ID, q)
		}
	}
	if body.Message != "2 questions match the current filters." {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestQuestionsBadMatch(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	resp := getJSON(t, srv.URL+"/api/v1/questions?match=fuzzy", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReport(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})

	tests := []struct {
		name      string
		query     string
		wantKind  model.SeriesKind
		wantNames []string
	}{
		{"teacher overview", "role=teacher", model.SeriesByStudent, []string{"Ada", "Student u2"}},
		{"teacher subject", "role=teacher&subject=Math", model.SeriesBySubject, []string{"Math", "Chemistry"}},
		{"teacher student timeline", "role=teacher&student=u1", model.SeriesTimeline, []string{"Test 2", "Test 1"}},
		{"student by subject", "role=student&user=u1", model.SeriesBySubject, []string{"Math"}},
		{"student timeline", "role=Student&user=u1&subject=math", model.SeriesTimeline, []string{"Test 2", "Test 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res report.Result
			resp := getJSON(t, srv.URL+"/api/v1/report?"+tt.query, &res)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if res.Kind != tt.wantKind {
				t.Errorf("kind: expected %q, got %q", tt.wantKind, res.Kind)
			}
			var names []string
			for _, p := range res.Chart {
				names = append(names, p.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("names: expected %v, got %v", tt.wantNames, names)
			}
		})
	}
}

func TestReportSubjectScopesQuestions(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	var res report.Result
	getJSON(t, srv.URL+"/api/v1/report?role=student&user=u1&subject=Math", &res)
	if len(res.Questions) != 2 {
		t.Errorf("expected 2 Math questions, got %d", len(res.Questions))
	}
	if len(res.QuestionChart) != 1 || res.QuestionChart[0].Name != "Q1" {
		t.Fatalf("unexpected question chart %+v", res.QuestionChart)
	}
	if got := res.QuestionChart[0].Performance; got != 60 {
		t.Errorf("expected performance 60, got %v", got)
	}
}

func TestReportLocalized(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	var res report.Result
	getJSON(t, srv.URL+"/api/v1/report?role=teacher&student=u1&lang=ru", &res)
	if len(res.Chart) != 2 {
		t.Fatalf("expected 2 points, got %d", len(res.Chart))
	}
	if res.Chart[0].Name != "Тест 2" || res.Chart[0].Date != "01.03.2024" {
		t.Errorf("unexpected localized point %+v", res.Chart[0])
	}
}

func TestReportBadInput(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	tests := []struct {
		query string
		want  string
	}{
		{"role=admin", "Unknown role admin"},
		{"", "Unknown role"},
		{"role=student", "user id is required"},
		{"role=teacher&match=near", "Unknown match mode near"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/v1/report?" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body %q does not contain %q", body, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, RouterOptions{})
		resp := getJSON(t, srv.URL+"/api/v1/report/summary?role=teacher", nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", resp.StatusCode)
		}
	})

	t.Run("ok", func(t *testing.T) {
		sum := &fakeSummarizer{}
		srv, _ := newTestServer(t, sum, RouterOptions{})
		var body struct {
			Summary llm.Summary   `json:"summary"`
			Report  report.Result `json:"report"`
		}
		resp := getJSON(t, srv.URL+"/api/v1/report/summary?role=teacher&subject=Math", &body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body.Summary.Headline != "Steady progress" || body.Report.Kind != model.SeriesBySubject {
			t.Errorf("unexpected body %+v", body)
		}
		if sum.view.SubjectFilter != "Math" {
			t.Errorf("summarizer saw view %+v", sum.view)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeSummarizer{err: errors.New("boom")}, RouterOptions{})
		resp := getJSON(t, srv.URL+"/api/v1/report/summary?role=teacher", nil)
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.StatusCode)
		}
	})
}

func TestFeedbackEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})

	var fs []model.Feedback
	getJSON(t, srv.URL+"/api/v1/feedbacks?userid=u1", &fs)
	if len(fs) != 2 {
		t.Errorf("expected 2 feedbacks for u1, got %d", len(fs))
	}

	fs = nil
	getJSON(t, srv.URL+"/api/v1/feedbacks/filter?userid=u2&subject=Math", &fs)
	if len(fs) != 0 {
		t.Errorf("expected no Math feedbacks for u2, got %d", len(fs))
	}

	fs = nil
	getJSON(t, srv.URL+"/api/v1/feedbacks/filter?subject=All", &fs)
	if len(fs) != 3 {
		t.Errorf("expected all 3 feedbacks, got %d", len(fs))
	}

	var subjects []string
	getJSON(t, srv.URL+"/api/v1/feedbacks/subjects", &subjects)
	if strings.Join(subjects, ",") != "Math,Chemistry" {
		t.Errorf("unexpected subjects %v", subjects)
	}
}

func TestStudents(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{})
	var body struct {
		Students []model.Student `json:"students"`
	}
	getJSON(t, srv.URL+"/api/v1/students", &body)
	if len(body.Students) != 1 || body.Students[0].Name != "Ada" {
		t.Errorf("unexpected students %+v", body.Students)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{Metrics: metrics.New()})
	getJSON(t, srv.URL+"/api/v1/report?role=teacher", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`insights_reports_built_total{kind="by_student"} 1`,
		`route="/api/v1/report"`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, nil, RouterOptions{CORSOrigins: []string{"https://dash.example.com"}})
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/students", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}

func TestParseView(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, v model.ViewState)
	}{
		{"defaults", "role=teacher", func(t *testing.T, v model.ViewState) {
			if v.SubjectFilter != model.All || v.StudentFilter != model.All {
				t.Errorf("expected All filters, got %+v", v)
			}
			if v.Questions.Types != nil {
				t.Errorf("expected nil types, got %v", v.Questions.Types)
			}
		}},
		{"subject carries to questions", "role=teacher&subject=Math", func(t *testing.T, v model.ViewState) {
			if v.Questions.Subject != "Math" || v.Questions.Match != model.MatchExact {
				t.Errorf("unexpected criteria %+v", v.Questions)
			}
		}},
		{"question subject overrides", "role=teacher&subject=Math&question_subject=alg", func(t *testing.T, v model.ViewState) {
			if v.Questions.Subject != "alg" || v.Questions.Match != "" {
				t.Errorf("unexpected criteria %+v", v.Questions)
			}
		}},
		{"empty question subject", "role=teacher&subject=Math&question_subject=", func(t *testing.T, v model.ViewState) {
			if v.Questions.Subject != "" || v.Questions.Match != "" {
				t.Errorf("expected no question subject restriction, got %+v", v.Questions)
			}
		}},
		{"empty types", "role=teacher&types=", func(t *testing.T, v model.ViewState) {
			if v.Questions.Types == nil || len(v.Questions.Types) != 0 {
				t.Errorf("expected empty non-nil types, got %#v", v.Questions.Types)
			}
		}},
		{"student", "role=student&user=%20u1%20", func(t *testing.T, v model.ViewState) {
			if v.Role != model.UserRoleStudent || v.UserID != "u1" {
				t.Errorf("unexpected view %+v", v)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			v, err := ParseView(q)
			if err != nil {
				t.Fatalf("ParseView: %v", err)
			}
			tt.check(t, v)
		})
	}
}

func TestParseViewErrors(t *testing.T) {
	for _, query := range []string{"role=owner", "role=student", "role=teacher&match=x"} {
		q, _ := url.ParseQuery(query)
		if _, err := ParseView(q); err == nil {
			t.Errorf("%s: expected error", query)
		}
	}
	q, _ := url.ParseQuery("role=owner")
	_, err := ParseView(q)
	if !errors.Is(err, errInvalidRole) {
		t.Errorf("expected errInvalidRole, got %v", err)
	}
}
