package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "UnknownEmail"); got != "Unknown" {
		t.Errorf("T(UnknownEmail) = %q, want 'Unknown'", got)
	}
	if got := Td(ctx, "TestN", map[string]any{"N": 3}); got != "Test 3" {
		t.Errorf("Td(TestN, 3) = %q, want 'Test 3'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := Td(ctx, "TestN", map[string]any{"N": 3}); got != "Тест 3" {
		t.Errorf("Td(TestN, 3) = %q, want 'Тест 3'", got)
	}
	if got := T(ctx, "DateLayout"); got != "02.01.2006" {
		t.Errorf("T(DateLayout) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsFound", 1); got != "1 question matches the current filters." {
		t.Errorf("Tp(QuestionsFound, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsFound", 5); got != "5 questions match the current filters." {
		t.Errorf("Tp(QuestionsFound, 5) = %q", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "RepeatedQuestions", 5); got != "5 вопросов встречаются повторно." {
		t.Errorf("Tp(RepeatedQuestions, 5) ru = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitInvalid(t *testing.T) {
	if err := Init("not a language!"); err == nil {
		t.Error("expected error for invalid language")
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	if n := len(Languages()); n < 2 {
		t.Errorf("Languages() has %d tags, want at least 2", n)
	}
}

func TestChartLabels(t *testing.T) {
	ctx := initLang(t, "ru")
	l := ChartLabels(ctx, "")

	if got := l.TestLabel(2); got != "Тест 2" {
		t.Errorf("TestLabel(2) = %q", got)
	}
	if got := l.StudentLabel("abcdef123"); got != "Студент abcdef" {
		t.Errorf("StudentLabel = %q", got)
	}
	if got := l.FormatDate(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)); got != "07.03.2024" {
		t.Errorf("FormatDate = %q", got)
	}

	if got := ChartLabels(ctx, "2006-01-02").DateLayout; got != "2006-01-02" {
		t.Errorf("override layout = %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "UnknownEmail")
	}))

	tests := []struct {
		name, query, accept, want string
	}{
		{"default", "", "", "Unknown"},
		{"accept language", "", "ru-RU,ru;q=0.9", "Неизвестно"},
		{"query wins", "?lang=en", "ru", "Unknown"},
		{"unsupported falls back", "?lang=fr", "", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
