// Package ingest decodes records of the collections API into model types.
//
// Records are accepted in the loose shape the API produces: snake_case
// fields, numbers that may arrive as strings, several timestamp formats,
// and collections either bare or wrapped in an envelope object. Malformed
// fields decode to their zero value instead of failing the whole batch.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/edugenai/insights/internal/model"
)

// UnknownSubject labels feedback records with no subject.
const UnknownSubject = "Unknown"

type rawQuestion struct {
	ID            flexString   `json:"id"`
	Text          flexString   `json:"text"`
	Question      flexString   `json:"question"`
	Type          flexString   `json:"type"`
	Subject       flexString   `json:"subject"`
	Topic         flexString   `json:"topic"`
	Difficulty    flexString   `json:"difficulty"`
	Points        flexFloat    `json:"points"`
	Options       []flexString `json:"options"`
	CorrectAnswer flexString   `json:"correct_answer"`
	Source        flexString   `json:"source"`
	SourceFile    flexString   `json:"source_file"`
	CreatedAt     flexTime     `json:"created_at"`
}

func (r rawQuestion) model() model.Question {
	q := model.Question{
		ID:            string(r.ID),
		Text:          string(r.Text),
		Type:          parseType(string(r.Type)),
		Subject:       strings.TrimSpace(string(r.Subject)),
		Topic:         strings.TrimSpace(string(r.Topic)),
		Difficulty:    parseDifficulty(string(r.Difficulty)),
		Points:        int(r.Points),
		CorrectAnswer: string(r.CorrectAnswer),
		Source:        string(r.Source),
		SourceFile:    string(r.SourceFile),
		CreatedAt:     time.Time(r.CreatedAt),
	}
	if q.Text == "" {
		q.Text = string(r.Question)
	}
	if q.Type == model.TypeMCQ && len(r.Options) > 0 {
		q.Options = make([]string, len(r.Options))
		for i, o := range r.Options {
			q.Options[i] = string(o)
		}
	}
	return q
}

type rawResult struct {
	QuestionNumber flexFloat  `json:"question_number"`
	Question       flexString `json:"question"`
	Score          flexFloat  `json:"score"`
	Points         flexFloat  `json:"points"`
	Feedback       flexString `json:"feedback"`
	ImprovedAnswer flexString `json:"improved_answer"`
}

type rawFeedback struct {
	ID              flexString  `json:"id"`
	UserID          flexString  `json:"userid"`
	UserIDAlt       flexString  `json:"user_id"`
	Subject         flexString  `json:"subject"`
	TotalScore      flexFloat   `json:"total_score"`
	MaxScore        flexFloat   `json:"max_score"`
	GradePercentage flexFloat   `json:"grade_percentage"`
	Timestamp       flexTime    `json:"timestamp"`
	DetailedResults []rawResult `json:"detailed_results"`
}

func (r rawFeedback) model() model.Feedback {
	f := model.Feedback{
		ID:              string(r.ID),
		UserID:          string(r.UserID),
		Subject:         strings.TrimSpace(string(r.Subject)),
		TotalScore:      float64(r.TotalScore),
		MaxScore:        float64(r.MaxScore),
		GradePercentage: float64(r.GradePercentage),
		Timestamp:       time.Time(r.Timestamp),
	}
	if f.UserID == "" {
		f.UserID = string(r.UserIDAlt)
	}
	if f.Subject == "" {
		f.Subject = UnknownSubject
	}
	for _, d := range r.DetailedResults {
		f.DetailedResults = append(f.DetailedResults, model.QuestionResult{
			QuestionNumber: int(d.QuestionNumber),
			Question:       string(d.Question),
			Score:          float64(d.Score),
			Points:         float64(d.Points),
			Feedback:       string(d.Feedback),
			ImprovedAnswer: string(d.ImprovedAnswer),
		})
	}
	return f
}

type rawStudent struct {
	UserID    flexString `json:"userid"`
	UserIDAlt flexString `json:"user_id"`
	Name      flexString `json:"name"`
	Email     flexString `json:"email"`
}

func (r rawStudent) model() model.Student {
	s := model.Student{UserID: string(r.UserID), Name: string(r.Name), Email: string(r.Email)}
	if s.UserID == "" {
		s.UserID = string(r.UserIDAlt)
	}
	return s
}

// DecodeQuestions reads a question collection, bare or as {"questions": [...]}.
func DecodeQuestions(r io.Reader) ([]model.Question, error) {
	raw, err := decodeCollection[rawQuestion](r, "questions")
	if err != nil {
		return nil, err
	}
	out := make([]model.Question, len(raw))
	for i, q := range raw {
		out[i] = q.model()
	}
	return out, nil
}

// DecodeFeedbacks reads a feedback collection, bare or as {"feedbacks": [...]}.
func DecodeFeedbacks(r io.Reader) ([]model.Feedback, error) {
	raw, err := decodeCollection[rawFeedback](r, "feedbacks")
	if err != nil {
		return nil, err
	}
	out := make([]model.Feedback, len(raw))
	for i, f := range raw {
		out[i] = f.model()
	}
	return out, nil
}

// DecodeStudents reads a student collection, bare or as {"students": [...]}.
func DecodeStudents(r io.Reader) ([]model.Student, error) {
	raw, err := decodeCollection[rawStudent](r, "students")
	if err != nil {
		return nil, err
	}
	out := make([]model.Student, len(raw))
	for i, s := range raw {
		out[i] = s.model()
	}
	return out, nil
}

// DecodeSubjects reads a subject list, bare or as {"subjects": [...]}.
func DecodeSubjects(r io.Reader) ([]string, error) {
	raw, err := decodeCollection[flexString](r, "subjects")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, string(s))
		}
	}
	return out, nil
}

// decodeCollection accepts a JSON array, an object holding the array under
// key, or null. Elements that fail to decode are skipped.
func decodeCollection[T any](r io.Reader, key string) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}, nil
	}

	var elems []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode %s envelope: %w", key, err)
		}
		inner, ok := env[key]
		if !ok || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
			return []T{}, nil
		}
		if err := json.Unmarshal(inner, &elems); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	default:
		return nil, fmt.Errorf("decode %s: unexpected JSON starting with %q", key, data[0])
	}

	out := make([]T, 0, len(elems))
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func parseType(s string) model.QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq", "multiple choice", "multiple_choice":
		return model.TypeMCQ
	case "short answer", "short_answer", "short":
		return model.TypeShortAnswer
	case "essay", "long answer":
		return model.TypeEssay
	}
	return model.QuestionType(strings.TrimSpace(s))
}

func parseDifficulty(s string) model.Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return model.DifficultyEasy
	case "medium":
		return model.DifficultyMedium
	case "hard":
		return model.DifficultyHard
	}
	return model.Difficulty(strings.TrimSpace(s))
}

// flexString decodes a JSON string or number. Anything else decodes as "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = flexString(n.String())
		return nil
	}
	*s = ""
	return nil
}

// flexFloat decodes a JSON number or numeric string. Anything else decodes as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*f = flexFloat(v)
			return nil
		}
	}
	*f = 0
	return nil
}

// timeLayouts are tried in order for string timestamps. Layouts without a
// zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// flexTime decodes RFC 3339, zone-less ISO 8601, or epoch milliseconds.
// Anything else decodes as the zero time.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = flexTime{}
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err == nil {
		*t = flexTime(time.UnixMilli(int64(ms)).UTC())
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*t = flexTime(ParseTime(str))
		return nil
	}
	*t = flexTime{}
	return nil
}

// ParseTime parses the timestamp formats the collections API emits. It
// returns the zero time when s matches none of them.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
