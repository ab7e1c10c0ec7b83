package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/store"
)

var (
	inFile      string
	inURL       string
	inAudio     string
	translate   bool
	outJSON     string
	outMD       string
	metricsAddr string
	noStore     bool
	timeout     time.Duration
	concurrency int
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Extract claims from a document and verify each of them",
	Long: `Check runs the full pipeline on one document:
- Split the text into sentences and select the ones carrying verifiable facts
- Resolve references and split statements into atomic claims (consensus voting)
- Verify every claim with a bounded search-and-evaluate loop
- Report one verdict per claim with sources, reasoning and cost

The document is the text argument, --file, --url, --audio, or stdin.

Example:
  claimcheck check "Paris is the capital of France and has 20 million residents."
  claimcheck check --url https://en.wikipedia.org/wiki/Eiffel_Tower --md report.md
  claimcheck check --audio interview.mp3 --translate --json report.json
  cat article.txt | claimcheck check --json -`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addInputFlags(checkCmd)
	addOutputFlags(checkCmd)
	checkCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
	checkCmd.Flags().IntVar(&concurrency, "concurrency", 0, "verification loops running at once (default from config)")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&inFile, "file", "", "read the document from a text, HTML or audio file")
	cmd.Flags().StringVar(&inURL, "url", "", "fetch the document from a web page")
	cmd.Flags().StringVar(&inAudio, "audio", "", "transcribe the document from an audio file (openai provider)")
	cmd.Flags().BoolVar(&translate, "translate", false, "translate non-English input to English before extraction")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall timeout")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path ('-' for stdout)")
	cmd.Flags().StringVar(&outMD, "md", "", "write the Markdown report to this path ('-' for stdout)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the report to history")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if translate {
		cfg.Preprocess.Translate = true
	}
	if concurrency > 0 {
		cfg.Orchestrator.Concurrency = concurrency
	}
	logger := newLogger(cfg)

	ctx, cancel := commandContext(timeout)
	defer cancel()

	if metricsAddr != "" {
		stop := startMetrics(metricsAddr, logger)
		defer stop()
	}

	c, err := pipeline.Build(cfg, pipeline.Dependencies{}, logger)
	if err != nil {
		return err
	}

	in, err := documentInput(args)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking with %s/%s, %d loops at once\n\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.Orchestrator.Concurrency)
	}

	report, err := c.Orchestrator.CheckInput(ctx, in)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if err := writeReport(report); err != nil {
		return err
	}
	saveReport(ctx, cfg, report, logger)
	return nil
}

// commandContext is canceled on interrupt or after d
func commandContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// documentInput builds the input from arguments and flags, falling back to
// stdin when it is not a terminal
func documentInput(args []string) (pipeline.Input, error) {
	in := pipeline.Input{
		Text:  strings.TrimSpace(strings.Join(args, " ")),
		File:  inFile,
		URL:   inURL,
		Audio: inAudio,
	}
	if in.Text == "" && in.File == "" && in.URL == "" && in.Audio == "" {
		stat, err := os.Stdin.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return in, pipeline.ErrNoInput
		}
		in.Stdin = os.Stdin
	}
	return in, nil
}

func writeReport(report *model.Report) error {
	renderer := pipeline.NewRenderer(os.Stdout)
	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose && outJSON != "-" {
			fmt.Fprintf(os.Stderr, "Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose && outMD != "-" {
			fmt.Fprintf(os.Stderr, "Wrote Markdown: %s\n", outMD)
		}
	}
	if outJSON != "-" && outMD != "-" {
		renderer.RenderSummary(report)
	}
	return nil
}

// saveReport stores the report in history. Failures are logged, not returned.
func saveReport(ctx context.Context, cfg *model.Config, report *model.Report, logger *slog.Logger) {
	if !cfg.Store.Enabled || noStore {
		return
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Warn("report history unavailable", "error", err)
		return
	}
	defer func() { _ = s.Close() }()

	if err := s.Save(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("could not save report", "id", report.ID, "error", err)
		return
	}
	logger.Debug("report saved", "id", report.ID)
}

func startMetrics(addr string, logger *slog.Logger) func() {
	errc := make(chan error, 1)
	srv := metrics.Serve(addr, errc)
	go func() {
		if err, ok := <-errc; ok {
			logger.Warn("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
