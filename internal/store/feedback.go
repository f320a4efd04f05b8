package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/edugenai/insights/internal/model"
)

// InsertFeedbacks upserts graded attempts by id in one transaction.
func (s *Store) InsertFeedbacks(ctx context.Context, fs []model.Feedback) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feedbacks (id, user_id, subject, total_score, max_score, grade_percentage, timestamp, detailed_results)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id, subject = excluded.subject, total_score = excluded.total_score,
			max_score = excluded.max_score, grade_percentage = excluded.grade_percentage,
			timestamp = excluded.timestamp, detailed_results = excluded.detailed_results`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fs {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		details, err := encodeJSON(f.DetailedResults)
		if err != nil {
			return fmt.Errorf("encode results of %s: %w", f.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			f.ID, f.UserID, f.Subject, f.TotalScore, f.MaxScore, f.GradePercentage,
			formatTime(f.Timestamp), details,
		); err != nil {
			return fmt.Errorf("insert feedback %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

const feedbackColumns = `id, user_id, subject, total_score, max_score, grade_percentage, timestamp, detailed_results`

// ListFeedbacks returns all graded attempts.
func (s *Store) ListFeedbacks(ctx context.Context) ([]model.Feedback, error) {
	return s.queryFeedbacks(ctx, `SELECT `+feedbackColumns+` FROM feedbacks ORDER BY rowid`)
}

// ListFeedbacksFiltered returns the attempts of userID, restricted to
// subject when it is non-empty. Subject matching ignores case. An empty
// userID matches every user.
func (s *Store) ListFeedbacksFiltered(ctx context.Context, userID, subject string) ([]model.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedbacks WHERE 1=1`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if subject != "" {
		query += ` AND lower(subject) = lower(?)`
		args = append(args, subject)
	}
	return s.queryFeedbacks(ctx, query+` ORDER BY rowid`, args...)
}

// FeedbackSubjects returns the distinct subjects of userID's attempts in
// first-seen order. An empty userID covers every user.
func (s *Store) FeedbackSubjects(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT subject FROM feedbacks WHERE subject != ''`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query+` GROUP BY subject ORDER BY MIN(rowid)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subjects := []string{}
	for rows.Next() {
		var subj string
		if err := rows.Scan(&subj); err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

func (s *Store) queryFeedbacks(ctx context.Context, query string, args ...any) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	feedbacks := []model.Feedback{}
	for rows.Next() {
		var f model.Feedback
		var ts, details string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Subject, &f.TotalScore, &f.MaxScore, &f.GradePercentage, &ts, &details); err != nil {
			return nil, err
		}
		if err := decodeJSON(details, &f.DetailedResults); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", f.ID, err)
		}
		f.Timestamp = parseTime(ts)
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, rows.Err()
}

// FeedbackCount returns the number of stored attempts.
func (s *Store) FeedbackCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedbacks`).Scan(&count)
	return count, err
}
