package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edugenai/insights/internal/chart"
	"github.com/edugenai/insights/internal/model"
)

// Source supplies a snapshot of the record collections.
type Source interface {
	ListQuestions(ctx context.Context) ([]model.Question, error)
	ListFeedbacks(ctx context.Context) ([]model.Feedback, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
}

// Observer is notified after every report built by a Service.
type Observer interface {
	ObserveReport(kind model.SeriesKind, elapsed time.Duration, questions, points int, stale bool)
}

// Request asks a Service for one report.
type Request struct {
	// Client identifies a dashboard session. Requests sharing a Client are
	// sequenced so that only the newest one is reported current.
	Client string
	View   model.ViewState
	Labels chart.Labels
}

// Result is a built report plus its sequencing outcome.
type Result struct {
	Report
	// Stale is set when a newer request from the same client was issued
	// while this one was being built.
	Stale bool `json:"stale"`
}

// maxClients bounds the number of tracked client sequencers.
const maxClients = 4096

// Service loads snapshots from a Source and builds reports from them.
type Service struct {
	src Source
	obs Observer

	mu      sync.Mutex
	clients map[string]*Sequencer
}

// NewService creates a Service. obs may be nil.
func NewService(src Source, obs Observer) *Service {
	return &Service{src: src, obs: obs, clients: make(map[string]*Sequencer)}
}

// Snapshot loads all three collections from the source.
func (s *Service) Snapshot(ctx context.Context) (Input, error) {
	var in Input
	var err error
	if in.Questions, err = s.src.ListQuestions(ctx); err != nil {
		return in, fmt.Errorf("list questions: %w", err)
	}
	if in.Feedbacks, err = s.src.ListFeedbacks(ctx); err != nil {
		return in, fmt.Errorf("list feedbacks: %w", err)
	}
	if in.Students, err = s.src.ListStudents(ctx); err != nil {
		return in, fmt.Errorf("list students: %w", err)
	}
	return in, nil
}

// Report loads a snapshot and builds the requested view.
func (s *Service) Report(ctx context.Context, req Request) (Result, error) {
	seq := s.sequencer(req.Client)
	var tok Token
	if seq != nil {
		tok = seq.Begin()
	}

	start := time.Now()
	in, err := s.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	in.View = req.View
	in.Labels = req.Labels
	res := Result{Report: Build(in)}

	if seq != nil && !seq.Complete(tok, res.Report) {
		res.Stale = true
		slog.Debug("report superseded", "client", req.Client, "token", tok)
	}

	elapsed := time.Since(start)
	slog.Debug("report built",
		"role", req.View.Role,
		"kind", res.Kind,
		"questions", len(res.Questions),
		"points", len(res.Chart),
		"elapsed", elapsed,
	)
	if s.obs != nil {
		s.obs.ObserveReport(res.Kind, elapsed, len(res.Questions), len(res.Chart), res.Stale)
	}
	return res, nil
}

func (s *Service) sequencer(client string) *Sequencer {
	if client == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.clients[client]
	if !ok {
		if len(s.clients) >= maxClients {
			clear(s.clients)
		}
		seq = &Sequencer{}
		s.clients[client] = seq
	}
	return seq
}
