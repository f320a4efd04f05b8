// Package report composes similarity annotation, filtering and chart
// aggregation into the single call a dashboard makes per view.
package report

import (
	"github.com/edugenai/insights/internal/chart"
	"github.com/edugenai/insights/internal/filter"
	"github.com/edugenai/insights/internal/model"
	"github.com/edugenai/insights/internal/similarity"
)

// Input is one consistent snapshot of records plus the view to render.
type Input struct {
	Questions []model.Question
	Feedbacks []model.Feedback
	Students  []model.Student
	View      model.ViewState
	Labels    chart.Labels
}

// Report is the rendered view. All slices are non-nil.
type Report struct {
	Questions        []model.Question   `json:"questions"`
	Chart            []model.ChartPoint `json:"chart"`
	Kind             model.SeriesKind   `json:"kind"`
	QuestionChart    []model.ChartPoint `json:"question_chart"`
	Subjects         []string           `json:"subjects"`
	QuestionSubjects []string           `json:"question_subjects"`
}

// Build renders in. It performs no I/O and never fails: absent or sparse
// inputs produce empty series.
func Build(in Input) Report {
	annotated := similarity.Annotate(in.Questions)
	questions := filter.Questions(annotated, in.View.Questions)

	feedbacks := []model.Feedback{}
	if scope, ok := FeedbackScope(in.View); ok {
		feedbacks = filter.Feedbacks(in.Feedbacks, scope)
	}
	cfg := chart.Config{
		Role:          in.View.Role,
		SubjectFilter: in.View.SubjectFilter,
		StudentFilter: in.View.StudentFilter,
	}
	points, kind := chart.Aggregate(feedbacks, cfg, in.Students, in.Labels)

	questionChart := []model.ChartPoint{}
	if kind != model.SeriesNone && !model.IsAll(in.View.SubjectFilter) {
		scoped := filter.Feedbacks(feedbacks, model.FeedbackCriteria{Subject: in.View.SubjectFilter})
		questionChart = chart.QuestionPerformance(scoped)
	}

	return Report{
		Questions:        questions,
		Chart:            points,
		Kind:             kind,
		QuestionChart:    questionChart,
		Subjects:         filter.FeedbackSubjects(in.Feedbacks),
		QuestionSubjects: filter.Subjects(in.Questions),
	}
}

// FeedbackScope returns the criteria that restrict feedbacks to what the
// view's chart is computed over.
//
// A teacher looking at all students sees every subject, so the per-subject
// overview spans the whole record set. A teacher focused on one student, and
// a student looking at their own results, are narrowed to that user and,
// when set, to the selected subject.
//
// ok is false when the view may see no feedback at all: an unknown role, or
// a student view without a user id.
func FeedbackScope(v model.ViewState) (c model.FeedbackCriteria, ok bool) {
	switch v.Role {
	case model.UserRoleTeacher:
		if model.IsAll(v.StudentFilter) {
			return model.FeedbackCriteria{}, true
		}
		return model.FeedbackCriteria{UserID: v.StudentFilter, Subject: v.SubjectFilter}, true
	case model.UserRoleStudent:
		if model.IsAll(v.UserID) {
			return model.FeedbackCriteria{}, false
		}
		return model.FeedbackCriteria{UserID: v.UserID, Subject: v.SubjectFilter}, true
	}
	return model.FeedbackCriteria{}, false
}
