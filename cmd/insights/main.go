package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/edugenai/insights/internal/handler"
	appI18n "github.com/edugenai/insights/internal/i18n"
	"github.com/edugenai/insights/internal/ingest"
	"github.com/edugenai/insights/internal/llm"
	"github.com/edugenai/insights/internal/llm/prompts"
	"github.com/edugenai/insights/internal/metrics"
	"github.com/edugenai/insights/internal/model"
	"github.com/edugenai/insights/internal/report"
	"github.com/edugenai/insights/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "insights",
		Short: "Question deduplication and performance analytics for assessment data",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), reportCmd(), summarizeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `insights --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("db", "insights.db", "SQLite database path")
	f.StringSlice("questions", nil, "Question collection JSON files to import (repeatable)")
	f.StringSlice("feedbacks", nil, "Feedback collection JSON files to import (repeatable)")
	f.StringSlice("students", nil, "Student collection JSON files to import (repeatable)")
	f.String("from-url", "", "Base URL of a collections API to sync from before starting")
	f.Float64("sync-rps", 10, "Maximum requests per second while syncing (0 = unlimited)")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("summary-variant", string(prompts.VariantStandard), "Summary prompt variant (brief, standard, detailed)")
}

func addViewFlags(f *pflag.FlagSet) {
	f.String("role", "teacher", "Viewer role (student, teacher)")
	f.String("user", "", "Viewer user id (required for the student role)")
	f.String("subject", "All", "Subject filter")
	f.String("student", "All", "Student filter (teacher role)")
	f.String("search", "", "Question search term")
	f.String("types", "", "Comma-separated question types (empty = all)")
	f.String("difficulty", "", "Question difficulty (Easy, Medium, Hard)")
	f.String("topic", "", "Question topic")
	f.String("match", "", "Question subject match mode (contains, exact)")
	f.String("date-layout", "", "Go time layout for timeline dates (default from locale)")
	f.StringP("lang", "l", "en", "Label language (en, ru)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analytics API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default label language (en, ru)")
	f.String("date-layout", "", "Go time layout for timeline dates (default from locale)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (empty disables CORS)")
	f.Float64("rate-limit", 20, "Requests per second per client IP (0 disables limiting)")
	f.Int("rate-burst", 40, "Burst size for the per-IP rate limit")
	f.Bool("summaries", false, "Enable LLM report summaries")
	addStoreFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import collection files or sync from an API into the snapshot store",
		RunE:  runImport,
	}
	addStoreFlags(cmd.Flags())
	addLogFlags(cmd.Flags())
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build one dashboard view and write it as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("db", "insights.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addViewFlags(f)
	addLogFlags(f)
	return cmd
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Build one dashboard view and print an LLM summary of it",
		RunE:  runSummarize,
	}
	f := cmd.Flags()
	f.String("db", "insights.db", "SQLite database path")
	f.String("language", "English", "Language the summary is written in")
	addViewFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("insights")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/insights")
	v.AddConfigPath("/etc/insights")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	if err := loadRecords(ctx, v, db, m); err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// A nil *llm.Client must not reach the handler as a non-nil interface.
	var summarizer handler.Summarizer
	if v.GetBool("summaries") {
		c, err := newLLMClient(ctx, v)
		if err != nil {
			return err
		}
		summarizer = c
	}

	h, err := handler.New(db, report.NewService(db, m), summarizer, handler.Config{
		DateLayout: v.GetString("date-layout"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	router := handler.NewRouter(h, handler.RouterOptions{
		Metrics:     m,
		CORSOrigins: v.GetStringSlice("cors-origins"),
		RateLimit:   v.GetFloat64("rate-limit"),
		RateBurst:   v.GetInt("rate-burst"),
		AccessLog:   true,
	})

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"summaries", summarizer != nil,
		"rate_limit", v.GetFloat64("rate-limit"),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadRecords(cmd.Context(), v, db, nil)
}

// loadRecords imports seed files and then, if configured, syncs from the
// collections API. m may be nil.
func loadRecords(ctx context.Context, v *viper.Viper, db *store.Store, m *metrics.Metrics) error {
	for _, kind := range []ingest.Kind{ingest.KindQuestions, ingest.KindStudents, ingest.KindFeedbacks} {
		stats, err := ingest.ImportFiles(ctx, db, kind, v.GetStringSlice(string(kind)))
		if err != nil {
			return fmt.Errorf("import %s: %w", kind, err)
		}
		if m != nil {
			m.ObserveImport(string(kind), stats.Records)
		}
		if stats.Files > 0 {
			slog.Info("import finished", "kind", kind, "files", stats.Files,
				"skipped", stats.Skipped, "records", stats.Records, "conflicts", stats.Conflicts)
		}
	}

	base := v.GetString("from-url")
	if base == "" {
		return nil
	}
	client, err := ingest.NewClient(base, nil, v.GetFloat64("sync-rps"))
	if err != nil {
		return fmt.Errorf("create sync client: %w", err)
	}
	f, err := ingest.Sync(ctx, client, db)
	if err != nil {
		return fmt.Errorf("sync from %s: %w", base, err)
	}
	if m != nil {
		m.ObserveImport(string(ingest.KindQuestions), len(f.Questions))
		m.ObserveImport(string(ingest.KindStudents), len(f.Students))
		m.ObserveImport(string(ingest.KindFeedbacks), len(f.Feedbacks))
	}
	slog.Info("sync finished", "url", base,
		"questions", len(f.Questions), "students", len(f.Students), "feedbacks", len(f.Feedbacks))
	return nil
}

func newLLMClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	variant := strings.ToLower(strings.TrimSpace(v.GetString("summary-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid summary-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	c, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), variant)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	return c, nil
}

// viewQuery maps view flags onto the query parameters the HTTP API
// accepts, so both surfaces share one parser.
func viewQuery(v *viper.Viper) url.Values {
	q := url.Values{}
	q.Set("role", v.GetString("role"))
	q.Set("user", v.GetString("user"))
	q.Set("subject", v.GetString("subject"))
	q.Set("student", v.GetString("student"))
	q.Set("q", v.GetString("search"))
	q.Set("difficulty", v.GetString("difficulty"))
	q.Set("topic", v.GetString("topic"))
	q.Set("match", v.GetString("match"))
	if t := v.GetString("types"); t != "" {
		q.Set("types", t)
	}
	return q
}

// viewContext is a parsed view plus the localized context it is rendered in.
type viewContext struct {
	ctx  context.Context
	view model.ViewState
}

func buildReport(ctx context.Context, v *viper.Viper) (report.Result, viewContext, error) {
	var hv viewContext
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return report.Result{}, hv, fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(v.GetString("lang")))
	hv.ctx = ctx

	view, err := handler.ParseView(viewQuery(v))
	if err != nil {
		return report.Result{}, hv, fmt.Errorf("parse view: %w", err)
	}
	hv.view = view

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return report.Result{}, hv, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	res, err := report.NewService(db, nil).Report(ctx, report.Request{
		View:   view,
		Labels: appI18n.ChartLabels(ctx, v.GetString("date-layout")),
	})
	if err != nil {
		return res, hv, fmt.Errorf("build report: %w", err)
	}
	return res, hv, nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	res, hv, err := buildReport(cmd.Context(), v)
	if err != nil {
		return err
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := report.WriteExport(w, hv.view, res.Report, time.Now()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("report written", "output", outPath, "kind", res.Kind,
		"questions", len(res.Questions), "points", len(res.Chart))
	return nil
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	res, hv, err := buildReport(cmd.Context(), v)
	if err != nil {
		return err
	}
	c, err := newLLMClient(hv.ctx, v)
	if err != nil {
		return err
	}
	s, err := c.Summarize(hv.ctx, hv.view, res.Report, v.GetString("language"))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	repeated := 0
	for _, q := range res.Questions {
		if q.IsRepeated {
			repeated++
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.Headline)
	for _, h := range s.Highlights {
		fmt.Fprintf(out, "  + %s\n", h)
	}
	for _, concern := range s.Concerns {
		fmt.Fprintf(out, "  ! %s\n", concern)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, appI18n.Tp(hv.ctx, "QuestionsFound", len(res.Questions)))
	fmt.Fprintln(out, appI18n.Tp(hv.ctx, "RepeatedQuestions", repeated))
	return nil
}

