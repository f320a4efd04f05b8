// Package chart pivots graded feedback records into chart-ready series.
//
// Which series is produced depends on the caller's role and on the subject
// and student filters of the current view:
//
//	teacher, all students, all subjects  -> one point per student
//	teacher, all students, one subject   -> one point per subject
//	teacher, one student                 -> timeline sorted by timestamp
//	student, all subjects                -> one point per subject
//	student, one subject                 -> timeline sorted by date label
//
// Feedbacks are expected to be pre-filtered by the caller. Aggregate never
// filters on its own.
package chart

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/edugenai/insights/internal/model"
)

// Config selects the aggregation branch.
type Config struct {
	Role          model.UserRole
	SubjectFilter string
	StudentFilter string
}

// Labels controls the human-readable parts of a series.
type Labels struct {
	// TestLabel names the i-th attempt (1-based) of a timeline.
	TestLabel func(i int) string
	// StudentLabel names a student with no matching directory record.
	StudentLabel func(userID string) string
	// UnknownEmail is used when a student has no directory record.
	UnknownEmail string
	// DateLayout is passed to time.Time.Format for timeline dates.
	DateLayout string
	// Location converts timestamps before formatting. Nil means UTC.
	Location *time.Location
}

// DefaultDateLayout renders dates as month/day/year without padding.
const DefaultDateLayout = "1/2/2006"

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		TestLabel:    func(i int) string { return fmt.Sprintf("Test %d", i) },
		StudentLabel: func(id string) string { return "Student " + ShortID(id) },
		UnknownEmail: "Unknown",
		DateLayout:   DefaultDateLayout,
	}
}

// ShortID returns the first six characters of a user id.
func ShortID(id string) string {
	r := []rune(id)
	if len(r) > 6 {
		r = r[:6]
	}
	return string(r)
}

func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	if l.TestLabel == nil {
		l.TestLabel = d.TestLabel
	}
	if l.StudentLabel == nil {
		l.StudentLabel = d.StudentLabel
	}
	if l.UnknownEmail == "" {
		l.UnknownEmail = d.UnknownEmail
	}
	if l.DateLayout == "" {
		l.DateLayout = d.DateLayout
	}
	return l
}

// FormatDate renders t with the labels' layout. The zero time renders as "".
func (l Labels) FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := l.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.In(loc).Format(layout)
}

// Aggregate builds the series for cfg. The returned slice is never nil.
// An unknown role yields an empty series of kind SeriesNone.
func Aggregate(feedbacks []model.Feedback, cfg Config, students []model.Student, labels Labels) ([]model.ChartPoint, model.SeriesKind) {
	labels = labels.withDefaults()
	switch cfg.Role {
	case model.UserRoleTeacher:
		switch {
		case !model.IsAll(cfg.StudentFilter):
			return timeline(feedbacks, labels, byTimestamp), model.SeriesTimeline
		case model.IsAll(cfg.SubjectFilter):
			return byStudent(feedbacks, students, labels), model.SeriesByStudent
		default:
			return bySubject(feedbacks), model.SeriesBySubject
		}
	case model.UserRoleStudent:
		if model.IsAll(cfg.SubjectFilter) {
			return bySubject(feedbacks), model.SeriesBySubject
		}
		return timeline(feedbacks, labels, byDate), model.SeriesTimeline
	}
	return []model.ChartPoint{}, model.SeriesNone
}

type group struct {
	key        string
	score      float64
	percentage float64
	count      int
}

// groupBy accumulates feedbacks per key, keeping first-occurrence order.
func groupBy(feedbacks []model.Feedback, key func(model.Feedback) string) []*group {
	index := make(map[string]*group)
	var order []*group
	for _, f := range feedbacks {
		k := key(f)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			order = append(order, g)
		}
		g.score += f.TotalScore
		g.percentage += f.GradePercentage
		g.count++
	}
	return order
}

func byStudent(feedbacks []model.Feedback, students []model.Student, labels Labels) []model.ChartPoint {
	directory := make(map[string]model.Student, len(students))
	for _, s := range students {
		if _, dup := directory[s.UserID]; !dup {
			directory[s.UserID] = s
		}
	}

	groups := groupBy(feedbacks, func(f model.Feedback) string { return f.UserID })
	out := make([]model.ChartPoint, 0, len(groups))
	for _, g := range groups {
		p := model.ChartPoint{
			UserID:            g.key,
			AveragePercentage: Round(mean(g.percentage, g.count)),
			TestCount:         g.count,
		}
		if s, ok := directory[g.key]; ok {
			p.Name, p.Email = s.Name, s.Email
		} else {
			p.Name, p.Email = labels.StudentLabel(g.key), labels.UnknownEmail
		}
		out = append(out, p)
	}
	return out
}

func bySubject(feedbacks []model.Feedback) []model.ChartPoint {
	groups := groupBy(feedbacks, func(f model.Feedback) string { return f.Subject })
	out := make([]model.ChartPoint, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.ChartPoint{
			Name:              g.key,
			Subject:           g.key,
			AverageScore:      Round(mean(g.score, g.count)),
			AveragePercentage: Round(mean(g.percentage, g.count)),
			TestCount:         g.count,
		})
	}
	return out
}

func byTimestamp(a, b model.ChartPoint) int { return a.Timestamp.Compare(b.Timestamp) }

// byDate compares the formatted labels, so "10/1/2024" sorts before "9/1/2024".
func byDate(a, b model.ChartPoint) int { return strings.Compare(a.Date, b.Date) }

// timeline labels every feedback by its input position, then sorts stably.
func timeline(feedbacks []model.Feedback, labels Labels, order func(a, b model.ChartPoint) int) []model.ChartPoint {
	out := make([]model.ChartPoint, 0, len(feedbacks))
	for i, f := range feedbacks {
		out = append(out, model.ChartPoint{
			Name:       labels.TestLabel(i + 1),
			Score:      f.TotalScore,
			Percentage: f.GradePercentage,
			MaxScore:   f.MaxScore,
			Subject:    f.Subject,
			Date:       labels.FormatDate(f.Timestamp),
			Timestamp:  f.Timestamp,
		})
	}
	slices.SortStableFunc(out, order)
	return out
}

// QuestionPerformance groups the detailed results of feedbacks by question
// number. Each point is named "Q<n>" and carries the share of available
// points scored, as a percentage. Questions worth no points score 0.
func QuestionPerformance(feedbacks []model.Feedback) []model.ChartPoint {
	type tally struct {
		number        int
		score, points float64
		count         int
	}
	index := make(map[int]*tally)
	var order []*tally
	for _, f := range feedbacks {
		for _, r := range f.DetailedResults {
			t, ok := index[r.QuestionNumber]
			if !ok {
				t = &tally{number: r.QuestionNumber}
				index[r.QuestionNumber] = t
				order = append(order, t)
			}
			t.score += r.Score
			t.points += r.Points
			t.count++
		}
	}

	out := make([]model.ChartPoint, 0, len(order))
	for _, t := range order {
		perf := 0.0
		if t.points != 0 {
			perf = t.score / t.points * 100
		}
		out = append(out, model.ChartPoint{
			Name:         fmt.Sprintf("Q%d", t.number),
			AverageScore: perf,
			Performance:  perf,
			TestCount:    t.count,
		})
	}
	return out
}

// Round rounds half up, so Round(2.5) == 3 and Round(-2.5) == -2.
// The fraction is compared directly; adding 0.5 first would round values
// just below one half up.
func Round(x float64) float64 {
	f := math.Floor(x)
	if x-f >= 0.5 {
		return f + 1
	}
	return f
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
