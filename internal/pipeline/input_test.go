package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/usage"
)

type stubFetcher struct {
	page *fetch.Page
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

type stubTranscriber struct{ text string }

func (s *stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return s.text, nil
}

type stubTranslator struct {
	lang       string
	translated int
}

func (s *stubTranslator) DetectLanguage(context.Context, string) (string, usage.Record, error) {
	return s.lang, usage.Inference("detect_language", "gpt-4o-mini", 10, 2), nil
}

func (s *stubTranslator) Translate(_ context.Context, text, _ string) (string, usage.Record, error) {
	s.translated++
	return "EN: " + text, usage.Inference("translate", "gpt-4o-mini", 10, 10), nil
}

func TestLoad_InlineText(t *testing.T) {
	doc, err := NewLoader().Load(context.Background(), Input{Text: "Paris is in France."})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Source != "inline" || doc.Text != "Paris is in France." {
		t.Errorf("Unexpected document: %+v", doc)
	}
	if doc.Usage == nil || doc.Usage.Len() != 0 {
		t.Error("Expected an empty usage ledger")
	}
}

func TestLoad_NoInput(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), Input{})
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("Expected ErrNoInput, got %v", err)
	}

	_, err = NewLoader().Load(context.Background(), Input{Stdin: strings.NewReader("  \n")})
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("Expected ErrNoInput for blank stdin, got %v", err)
	}
}

func TestLoad_RejectsSeveralSources(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), Input{Text: "a", URL: "https://example.com"})
	if err == nil {
		t.Error("Expected error for two sources")
	}
}

func TestLoad_Stdin(t *testing.T) {
	doc, err := NewLoader().Load(context.Background(), Input{Stdin: strings.NewReader("Water boils at 100 C.\n")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Source != "stdin" || !strings.Contains(doc.Text, "Water boils") {
		t.Errorf("Unexpected document: %+v", doc)
	}
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "moon_landing.txt")
	html := filepath.Join(dir, "page.html")
	if err := os.WriteFile(txt, []byte("Apollo 11 landed in 1969."), 0o644); err != nil {
		t.Fatal(err)
	}
	htmlDoc := `<html><head><title>Moon</title></head><body><p>Apollo 11 landed in 1969.</p><script>var x;</script></body></html>`
	if err := os.WriteFile(html, []byte(htmlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewLoader().Load(context.Background(), Input{File: txt})
	if err != nil {
		t.Fatalf("Load text file failed: %v", err)
	}
	if doc.Title != "moon landing" || doc.Text != "Apollo 11 landed in 1969." {
		t.Errorf("Unexpected text document: %+v", doc)
	}

	doc, err = NewLoader().Load(context.Background(), Input{File: html})
	if err != nil {
		t.Fatalf("Load HTML file failed: %v", err)
	}
	if doc.Title != "Moon" {
		t.Errorf("Expected HTML title, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Apollo 11") || strings.Contains(doc.Text, "var x") {
		t.Errorf("Unexpected HTML text: %q", doc.Text)
	}

	if _, err := NewLoader().Load(context.Background(), Input{File: filepath.Join(dir, "missing.txt")}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_URL(t *testing.T) {
	page := &fetch.Page{
		URL:      "https://example.com/wiki/Eiffel_Tower",
		FinalURL: "https://example.com/wiki/Eiffel_Tower",
		Text:     "The tower is 330 metres tall.",
	}
	doc, err := NewLoader(WithFetcher(&stubFetcher{page: page})).Load(context.Background(), Input{URL: page.URL})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Title != "Eiffel Tower" {
		t.Errorf("Expected subject from URL, got %q", doc.Title)
	}
	if doc.Source != page.FinalURL {
		t.Errorf("Unexpected source %q", doc.Source)
	}

	if _, err := NewLoader().Load(context.Background(), Input{URL: page.URL}); err == nil {
		t.Error("Expected error without a fetcher")
	}
	failing := NewLoader(WithFetcher(&stubFetcher{err: errors.New("blocked by robots.txt")}))
	if _, err := failing.Load(context.Background(), Input{URL: page.URL}); err == nil {
		t.Error("Expected fetch error")
	}
}

func TestLoad_Audio(t *testing.T) {
	loader := NewLoader(WithTranscriber(&stubTranscriber{text: "Paris is the capital of France."}))
	doc, err := loader.Load(context.Background(), Input{Audio: "/tmp/interview.mp3"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Text != "Paris is the capital of France." || doc.Title != "interview" {
		t.Errorf("Unexpected document: %+v", doc)
	}

	if _, err := NewLoader().Load(context.Background(), Input{Audio: "/tmp/interview.mp3"}); err == nil {
		t.Error("Expected error without a transcriber")
	}
}

func TestLoad_Translation(t *testing.T) {
	french := &stubTranslator{lang: "fr"}
	doc, err := NewLoader(WithTranslator(french, "en")).Load(context.Background(), Input{Text: "Paris est en France."})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Text != "EN: Paris est en France." || doc.Language != "fr" {
		t.Errorf("Unexpected document: %+v", doc)
	}
	if doc.Usage.Len() != 2 {
		t.Errorf("Expected 2 usage records, got %d", doc.Usage.Len())
	}

	english := &stubTranslator{lang: "en"}
	doc, err = NewLoader(WithTranslator(english, "en")).Load(context.Background(), Input{Text: "Paris is in France."})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if english.translated != 0 || doc.Text != "Paris is in France." {
		t.Errorf("English input must not be translated: %+v", doc)
	}
}

func TestSourceInput(t *testing.T) {
	tests := []struct {
		source string
		want   Input
	}{
		{"https://example.com/a", Input{URL: "https://example.com/a"}},
		{"http://example.com", Input{URL: "http://example.com"}},
		{"talk.m4a", Input{Audio: "talk.m4a"}},
		{" notes.txt ", Input{File: "notes.txt"}},
	}
	for _, tt := range tests {
		got := SourceInput(tt.source)
		if got != tt.want {
			t.Errorf("SourceInput(%q) = %+v, want %+v", tt.source, got, tt.want)
		}
	}
}

func TestExtractSubject(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://en.wikipedia.org/wiki/Eiffel_Tower", "Eiffel Tower"},
		{"https://example.com/", "example.com"},
		{"https://example.com/news/big-story.html", "big story"},
		{"/home/user/docs/annual_report.txt", "annual report"},
		{"speech.mp3", "speech"},
	}
	for _, tt := range tests {
		if got := extractSubject(tt.raw); got != tt.want {
			t.Errorf("extractSubject(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
