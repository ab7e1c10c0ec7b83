package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Checker runs the full claim check for one document source (a file path or URL)
type Checker interface {
	CheckSource(ctx context.Context, source string) (*model.Report, error)
}

// CheckJob checks a single source
type CheckJob struct {
	Index   int
	Source  string
	Checker Checker
}

// Execute runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	start := time.Now()
	report, err := j.Checker.CheckSource(ctx, j.Source)
	return &CheckResult{
		Index:    j.Index,
		Source:   j.Source,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// CheckResult represents the outcome of one source
type CheckResult struct {
	Index    int
	Source   string
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// GetError returns the error from the check
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many sources concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessSources checks every source and returns results in input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*CheckResult {
	out := make([]*CheckResult, len(sources))
	if len(sources) == 0 {
		return out
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, source := range sources {
		job := &CheckJob{Index: i, Source: source, Checker: b.checker}
		if !pool.Submit(job) {
			out[i] = &CheckResult{Index: i, Source: source, Error: ctx.Err()}
		}
	}

	for _, result := range pool.Wait() {
		r := result.(*CheckResult)
		out[r.Index] = r
	}

	for i, r := range out {
		if r == nil {
			out[i] = &CheckResult{Index: i, Source: sources[i], Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
		}
	}
	return out
}

// ProcessFile reads sources from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads one source per line, skipping blanks, comments and duplicates
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
