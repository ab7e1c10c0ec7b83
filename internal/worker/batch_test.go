package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// mockChecker implements Checker
type mockChecker struct {
	failFor map[string]bool
}

func (m *mockChecker) CheckSource(ctx context.Context, source string) (*model.Report, error) {
	time.Sleep(5 * time.Millisecond)
	if m.failFor[source] {
		return nil, errors.New("check error")
	}
	return &model.Report{Source: source}, nil
}

func TestBatchProcessor_ProcessSources(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)

	sources := []string{"http://example.com", "notes.txt", "http://bing.com"}
	results := processor.ProcessSources(context.Background(), sources)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Source, res.Error)
			continue
		}
		if res.Source != sources[i] {
			t.Errorf("result %d out of order: got %s, want %s", i, res.Source, sources[i])
		}
		if res.Report == nil || res.Report.Source != sources[i] {
			t.Errorf("expected report for %s", sources[i])
		}
	}
}

func TestBatchProcessor_ProcessSources_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{failFor: map[string]bool{"bad": true}}, 2)

	results := processor.ProcessSources(context.Background(), []string{"good", "bad"})

	if results[0].Error != nil {
		t.Errorf("unexpected error for good source: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessSources_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)

	results := processor.ProcessSources(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSourcesFromFile(t *testing.T) {
	path := writeSources(t, "http://example.com\n# comment\n./article.txt\n   \nhttp://example.com\nhttp://bing.com   ")

	sources, err := ReadSourcesFromFile(path)
	if err != nil {
		t.Fatalf("ReadSourcesFromFile failed: %v", err)
	}

	expected := []string{"http://example.com", "./article.txt", "http://bing.com"}
	if len(sources) != len(expected) {
		t.Fatalf("expected %d sources, got %d", len(expected), len(sources))
	}
	for i, s := range sources {
		if s != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, s)
		}
	}
}

func TestReadSourcesFromFile_NonExistent(t *testing.T) {
	if _, err := ReadSourcesFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestCheckResult_GetError(t *testing.T) {
	r1 := &CheckResult{Source: "a"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("check failed")
	r2 := &CheckResult{Source: "a", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeSources(t, "http://example.com\nhttps://google.com\n# comment\n\nhttp://bing.com\n")

	results, err := NewBatchProcessor(&mockChecker{}, 2).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	_, err := NewBatchProcessor(&mockChecker{}, 2).ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
