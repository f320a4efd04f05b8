package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edugenai/insights/internal/model"

	"golang.org/x/time/rate"
)

// ErrUnexpectedStatus is returned when the collections API answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// maxBody caps the size of a single collection response.
const maxBody = 64 << 20

// Client fetches record collections from a remote collections API.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the API rooted at baseURL, for example
// "http://localhost:8088/api/v1". A nil hc uses a client with a 30s timeout.
// rps limits outgoing requests per second; zero or less disables limiting.
func NewClient(baseURL string, hc *http.Client, rps float64) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base URL: unsupported scheme %q", u.Scheme)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{base: u, http: hc}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c, nil
}

// Questions fetches the question bank. A non-empty subject restricts it
// server-side.
func (c *Client) Questions(ctx context.Context, subject string) ([]model.Question, error) {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	body, err := c.get(ctx, "/questions", q)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeQuestions(body)
}

// Feedbacks fetches every graded attempt of one user.
func (c *Client) Feedbacks(ctx context.Context, userID string) ([]model.Feedback, error) {
	body, err := c.get(ctx, "/feedbacks", url.Values{"userid": {userID}})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeFeedbacks(body)
}

// FeedbacksBySubject fetches one user's attempts for a single subject.
func (c *Client) FeedbacksBySubject(ctx context.Context, userID, subject string) ([]model.Feedback, error) {
	body, err := c.get(ctx, "/feedbacks/filter", url.Values{"userid": {userID}, "subject": {subject}})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeFeedbacks(body)
}

// FeedbackSubjects fetches the subjects a user has attempts in.
func (c *Client) FeedbackSubjects(ctx context.Context, userID string) ([]string, error) {
	body, err := c.get(ctx, "/feedbacks/subjects", url.Values{"userid": {userID}})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeSubjects(body)
}

// Students fetches every student with at least one graded attempt.
func (c *Client) Students(ctx context.Context) ([]model.Student, error) {
	body, err := c.get(ctx, "/students", nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeStudents(body)
}

// Fetch is a full pull of the remote collections.
type Fetch struct {
	Questions []model.Question
	Feedbacks []model.Feedback
	Students  []model.Student
}

// FetchAll pulls questions, students and the feedbacks of every student.
func (c *Client) FetchAll(ctx context.Context) (Fetch, error) {
	var f Fetch
	var err error
	if f.Questions, err = c.Questions(ctx, ""); err != nil {
		return f, fmt.Errorf("fetch questions: %w", err)
	}
	if f.Students, err = c.Students(ctx); err != nil {
		return f, fmt.Errorf("fetch students: %w", err)
	}
	for _, s := range f.Students {
		if s.UserID == "" {
			continue
		}
		fs, err := c.Feedbacks(ctx, s.UserID)
		if err != nil {
			return f, fmt.Errorf("fetch feedbacks for %s: %w", s.UserID, err)
		}
		f.Feedbacks = append(f.Feedbacks, fs...)
	}
	slog.Info("fetched collections",
		"base", c.base.String(),
		"questions", len(f.Questions),
		"students", len(f.Students),
		"feedbacks", len(f.Feedbacks),
	)
	return f, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w: %s", path, ErrUnexpectedStatus, resp.Status)
	}
	slog.Debug("collections API", "path", path, "status", resp.StatusCode)
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxBody), resp.Body}, nil
}
