package model

// MatchMode selects how the subject criterion compares against a question.
// The zero value behaves as MatchContains.
type MatchMode string

const (
	// MatchContains is the question-bank behaviour: case-insensitive substring.
	MatchContains MatchMode = "contains"
	// MatchExact is the filter-by-subject behaviour: case-insensitive equality.
	MatchExact MatchMode = "exact"
)

// QuestionCriteria narrows a question collection. Zero values mean "no
// restriction" except for Types, where nil means absent and an empty
// non-nil slice means no type is enabled.
type QuestionCriteria struct {
	Subject    string         `json:"subject,omitempty"`
	Match      MatchMode      `json:"match,omitempty"`
	Search     string         `json:"search,omitempty"`
	Types      []QuestionType `json:"types"`
	Difficulty Difficulty     `json:"difficulty,omitempty"`
	Topic      string         `json:"topic,omitempty"`
}

// FeedbackCriteria narrows a feedback collection.
type FeedbackCriteria struct {
	UserID  string `json:"user_id,omitempty"`
	Subject string `json:"subject,omitempty"`
	Search  string `json:"search,omitempty"`
}

// ViewState is everything the UI selected for one report. It is passed
// explicitly on every call.
type ViewState struct {
	Role          UserRole         `json:"role"`
	UserID        string           `json:"user_id,omitempty"`
	SubjectFilter string           `json:"subject_filter"`
	StudentFilter string           `json:"student_filter"`
	Questions     QuestionCriteria `json:"questions"`
}
