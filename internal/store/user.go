package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/edugenai/insights/internal/model"
)

// UpsertStudents stores student directory records keyed by user id.
// Records without a user id are skipped.
func (s *Store) UpsertStudents(ctx context.Context, students []model.Student) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	skipped := 0
	for _, st := range students {
		if st.UserID == "" {
			skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO students (user_id, name, email) VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, email = excluded.email`,
			st.UserID, st.Name, st.Email,
		); err != nil {
			return err
		}
	}
	if skipped > 0 {
		slog.Warn("skipped students without user id", "count", skipped)
	}
	return tx.Commit()
}

// GetStudent returns a student by user id, or nil if there is none.
func (s *Store) GetStudent(ctx context.Context, userID string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email FROM students WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.Name, &st.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStudents returns all students.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, name, email FROM students ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	students := []model.Student{}
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.UserID, &st.Name, &st.Email); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
