package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edugenai/insights/internal/model"

	_ "modernc.org/sqlite"
)

// Store is a sqlite snapshot of the record collections. Rows keep their
// first insertion order, which is the order every List method returns.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL DEFAULT 0,
		options TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS feedbacks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		total_score REAL NOT NULL DEFAULT 0,
		max_score REAL NOT NULL DEFAULT 0,
		grade_percentage REAL NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL DEFAULT '',
		detailed_results TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS feedbacks_user ON feedbacks (user_id);

	CREATE TABLE IF NOT EXISTS students (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestions upserts questions by id in one transaction. Questions
// without an id are given a random one. Repetition annotations are not stored.
func (s *Store) InsertQuestions(ctx context.Context, qs []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions (id, text, type, subject, topic, difficulty, points, options, correct_answer, source, source_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			text = excluded.text, type = excluded.type, subject = excluded.subject, topic = excluded.topic,
			difficulty = excluded.difficulty, points = excluded.points, options = excluded.options,
			correct_answer = excluded.correct_answer, source = excluded.source,
			source_file = excluded.source_file, created_at = excluded.created_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range qs {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		options, err := encodeJSON(q.Options)
		if err != nil {
			return fmt.Errorf("encode options of %s: %w", q.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			q.ID, q.Text, q.Type, q.Subject, q.Topic, q.Difficulty, q.Points, options,
			q.CorrectAnswer, q.Source, q.SourceFile, formatTime(q.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

const questionColumns = `id, text, type, subject, topic, difficulty, points, options, correct_answer, source, source_file, created_at`

// ListQuestions returns all questions.
func (s *Store) ListQuestions(ctx context.Context) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY rowid`)
}

// ListQuestionsBySubject returns questions whose subject equals subject,
// ignoring case. An empty subject returns all questions.
func (s *Store) ListQuestionsBySubject(ctx context.Context, subject string) ([]model.Question, error) {
	if subject == "" {
		return s.ListQuestions(ctx)
	}
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE lower(subject) = lower(?) ORDER BY rowid`, subject)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		var options, createdAt string
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &q.Subject, &q.Topic, &q.Difficulty, &q.Points,
			&options, &q.CorrectAnswer, &q.Source, &q.SourceFile, &createdAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", q.ID, err)
		}
		q.CreatedAt = parseTime(createdAt)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of stored questions.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

func encodeJSON(v any) (string, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "", nil
		}
	case []model.QuestionResult:
		if len(x) == 0 {
			return "", nil
		}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
