package model

import (
	"errors"
	"strings"
	"time"
)

// UserRole is the caller's identity class. It selects which chart branch applies.
type UserRole string

const (
	// UserRoleStudent sees only their own results.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher sees results across all students.
	UserRoleTeacher UserRole = "teacher"
)

// ErrUnknownRole is returned by ParseRole for anything other than student or teacher.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole normalizes a role name. Matching is case-insensitive.
func ParseRole(s string) (UserRole, error) {
	switch UserRole(strings.ToLower(strings.TrimSpace(s))) {
	case UserRoleStudent:
		return UserRoleStudent, nil
	case UserRoleTeacher:
		return UserRoleTeacher, nil
	}
	return "", ErrUnknownRole
}

// All is the filter value meaning "no restriction".
const All = "All"

// IsAll reports whether a filter value is unset. Both "" and "All" count.
func IsAll(v string) bool {
	return v == "" || v == All
}

// QuestionType is the answer format of a question.
type QuestionType string

const (
	TypeMCQ         QuestionType = "MCQ"
	TypeShortAnswer QuestionType = "Short Answer"
	TypeEssay       QuestionType = "Essay"
)

// QuestionTypes lists every known question type in display order.
var QuestionTypes = []QuestionType{TypeMCQ, TypeShortAnswer, TypeEssay}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// RepetitionLevel buckets a repetition count for display.
type RepetitionLevel string

const (
	RepetitionNone     RepetitionLevel = "none"
	RepetitionRepeated RepetitionLevel = "repeated"
	RepetitionFrequent RepetitionLevel = "frequent"
)

// Question is one entry of the question bank.
//
// RepetitionCount, IsRepeated and RepetitionLevel are annotations relative to
// the corpus they were computed against. They are never stored.
type Question struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	Type            QuestionType    `json:"type"`
	Subject         string          `json:"subject"`
	Topic           string          `json:"topic"`
	Difficulty      Difficulty      `json:"difficulty"`
	Points          int             `json:"points"`
	Options         []string        `json:"options,omitempty"`
	CorrectAnswer   string          `json:"correct_answer"`
	Source          string          `json:"source,omitempty"`
	SourceFile      string          `json:"source_file"`
	CreatedAt       time.Time       `json:"created_at"`
	RepetitionCount int             `json:"repetition_count"`
	IsRepeated      bool            `json:"is_repeated"`
	RepetitionLevel RepetitionLevel `json:"repetition_level,omitempty"`
}

const questionPlaceholder = "[Question text]"

// DisplayText returns the question text with extraction placeholders removed.
func (q Question) DisplayText() string {
	if q.Text == "" {
		return "No question text available"
	}
	t := strings.TrimSpace(strings.ReplaceAll(q.Text, questionPlaceholder, ""))
	if t == "" {
		return "Question content"
	}
	return t
}

// QuestionResult is the grading detail for one question of an attempt.
type QuestionResult struct {
	QuestionNumber int     `json:"question_number"`
	Question       string  `json:"question"`
	Score          float64 `json:"score"`
	Points         float64 `json:"points"`
	Feedback       string  `json:"feedback,omitempty"`
	ImprovedAnswer string  `json:"improved_answer,omitempty"`
}

// Feedback is one graded assessment attempt. It is never modified after grading.
type Feedback struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userid"`
	Subject         string           `json:"subject"`
	TotalScore      float64          `json:"total_score"`
	MaxScore        float64          `json:"max_score"`
	GradePercentage float64          `json:"grade_percentage"`
	Timestamp       time.Time        `json:"timestamp"`
	DetailedResults []QuestionResult `json:"detailed_results,omitempty"`
}

// Student is the identity used to label per-student aggregates.
type Student struct {
	UserID string `json:"userid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// ChartPoint is one plottable record. Which fields are meaningful depends on
// the SeriesKind of the series it belongs to.
type ChartPoint struct {
	Name              string    `json:"name"`
	UserID            string    `json:"user_id,omitempty"`
	Email             string    `json:"email,omitempty"`
	Subject           string    `json:"subject,omitempty"`
	Date              string    `json:"date,omitempty"`
	Timestamp         time.Time `json:"timestamp,omitzero"`
	Score             float64   `json:"score"`
	Percentage        float64   `json:"percentage"`
	MaxScore          float64   `json:"max_score"`
	AverageScore      float64   `json:"average_score"`
	AveragePercentage float64   `json:"average_percentage"`
	TestCount         int       `json:"test_count"`
	Performance       float64   `json:"performance"`
}

// SeriesKind names the shape of a chart series.
type SeriesKind string

const (
	SeriesNone       SeriesKind = ""
	SeriesByStudent  SeriesKind = "by_student"
	SeriesBySubject  SeriesKind = "by_subject"
	SeriesTimeline   SeriesKind = "timeline"
	SeriesByQuestion SeriesKind = "by_question"
)
