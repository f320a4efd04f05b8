// Package filter narrows question and feedback collections by the criteria a
// dashboard view selects. Every function is pure: inputs are never modified
// and surviving records keep their input order.
package filter

import (
	"slices"
	"strings"

	"github.com/edugenai/insights/internal/model"
)

// Questions returns the questions matching every set criterion.
func Questions(qs []model.Question, c model.QuestionCriteria) []model.Question {
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if MatchQuestion(q, c) {
			out = append(out, q)
		}
	}
	return out
}

// MatchQuestion reports whether a single question passes c.
func MatchQuestion(q model.Question, c model.QuestionCriteria) bool {
	if !model.IsAll(c.Subject) && !matchSubject(q.Subject, c.Subject, c.Match) {
		return false
	}
	if c.Search != "" && !containsAny(c.Search, q.Text, q.Subject, q.Source, q.SourceFile) {
		return false
	}
	// nil means the type criterion is absent; a non-nil empty set admits nothing.
	if c.Types != nil && !slices.Contains(c.Types, q.Type) {
		return false
	}
	if !model.IsAll(string(c.Difficulty)) && q.Difficulty != c.Difficulty {
		return false
	}
	if !model.IsAll(c.Topic) && q.Topic != c.Topic {
		return false
	}
	return true
}

// Feedbacks returns the feedback records matching every set criterion.
// Subject matching is exact and case-insensitive.
func Feedbacks(fs []model.Feedback, c model.FeedbackCriteria) []model.Feedback {
	out := make([]model.Feedback, 0, len(fs))
	for _, f := range fs {
		if MatchFeedback(f, c) {
			out = append(out, f)
		}
	}
	return out
}

// MatchFeedback reports whether a single feedback record passes c.
func MatchFeedback(f model.Feedback, c model.FeedbackCriteria) bool {
	if !model.IsAll(c.UserID) && f.UserID != c.UserID {
		return false
	}
	if !model.IsAll(c.Subject) && !matchSubject(f.Subject, c.Subject, model.MatchExact) {
		return false
	}
	if c.Search != "" && !containsAny(c.Search, f.Subject) {
		return false
	}
	return true
}

// Subjects returns the distinct non-empty subjects of qs in first-seen order.
func Subjects(qs []model.Question) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, q := range qs {
		if q.Subject != "" && !seen[q.Subject] {
			seen[q.Subject] = true
			out = append(out, q.Subject)
		}
	}
	return out
}

// FeedbackSubjects returns the distinct non-empty subjects of fs in first-seen order.
func FeedbackSubjects(fs []model.Feedback) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range fs {
		if f.Subject != "" && !seen[f.Subject] {
			seen[f.Subject] = true
			out = append(out, f.Subject)
		}
	}
	return out
}

func matchSubject(have, want string, mode model.MatchMode) bool {
	if have == "" {
		return false
	}
	have, want = strings.ToLower(have), strings.ToLower(want)
	if mode == model.MatchExact {
		return have == want
	}
	return strings.Contains(have, want)
}

// containsAny reports whether term occurs, ignoring case, in any non-empty field.
func containsAny(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
