package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	appI18n "github.com/edugenai/insights/internal/i18n"
	"github.com/edugenai/insights/internal/model"
)

var (
	errInvalidRole  = errors.New("invalid role")
	errInvalidMatch = errors.New("invalid match mode")
	errNeedUser     = errors.New("student role requires a user id")
)

// viewError carries the offending value for the localized message.
type viewError struct {
	kind  error
	value string
}

func (e *viewError) Error() string { return fmt.Sprintf("%v: %q", e.kind, e.value) }
func (e *viewError) Unwrap() error { return e.kind }

// ParseView reads a ViewState from query parameters:
//
//	role, user, subject, student             chart selection
//	q, types, difficulty, topic, match       question criteria
//	question_subject                         question subject, defaults to subject
//
// types is a comma-separated list. Present but empty means no type is
// enabled; absent means no type restriction.
func ParseView(q url.Values) (model.ViewState, error) {
	var v model.ViewState
	role, err := model.ParseRole(q.Get("role"))
	if err != nil {
		return v, &viewError{kind: errInvalidRole, value: q.Get("role")}
	}
	v.Role = role
	v.UserID = strings.TrimSpace(q.Get("user"))
	v.SubjectFilter = valueOrAll(q.Get("subject"))
	v.StudentFilter = valueOrAll(q.Get("student"))
	if v.Role == model.UserRoleStudent && v.UserID == "" {
		return v, errNeedUser
	}

	c, err := parseQuestionCriteria(q)
	if err != nil {
		return v, err
	}
	if !q.Has("question_subject") && !model.IsAll(v.SubjectFilter) {
		c.Subject = v.SubjectFilter
		if !q.Has("match") {
			c.Match = model.MatchExact
		}
	}
	v.Questions = c
	return v, nil
}

func parseQuestionCriteria(q url.Values) (model.QuestionCriteria, error) {
	c := model.QuestionCriteria{
		Subject:    strings.TrimSpace(q.Get("question_subject")),
		Search:     strings.TrimSpace(q.Get("q")),
		Difficulty: model.Difficulty(strings.TrimSpace(q.Get("difficulty"))),
		Topic:      strings.TrimSpace(q.Get("topic")),
	}
	if !q.Has("question_subject") {
		c.Subject = strings.TrimSpace(q.Get("subject"))
	}
	switch m := model.MatchMode(strings.ToLower(q.Get("match"))); m {
	case "", model.MatchContains, model.MatchExact:
		c.Match = m
	default:
		return c, &viewError{kind: errInvalidMatch, value: q.Get("match")}
	}
	if q.Has("types") {
		c.Types = ParseTypes(q.Get("types"))
	}
	return c, nil
}

// ParseTypes splits a comma-separated type list. It never returns nil.
func ParseTypes(s string) []model.QuestionType {
	types := []model.QuestionType{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, model.QuestionType(part))
		}
	}
	return types
}

func valueOrAll(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.All
	}
	return s
}

func viewErrorMessage(ctx context.Context, err error) string {
	var ve *viewError
	switch {
	case errors.As(err, &ve) && errors.Is(err, errInvalidRole):
		return appI18n.Td(ctx, "InvalidRole", map[string]any{"Role": ve.value})
	case errors.As(err, &ve) && errors.Is(err, errInvalidMatch):
		return appI18n.Td(ctx, "InvalidMatch", map[string]any{"Match": ve.value})
	case errors.Is(err, errNeedUser):
		return appI18n.T(ctx, "StudentUserRequired")
	}
	return err.Error()
}
