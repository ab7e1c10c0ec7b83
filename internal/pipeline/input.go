package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/preprocess"
	"github.com/ppiankov/claimcheck/internal/usage"
)

// ErrNoInput is returned when an Input names no source
var ErrNoInput = errors.New("no input: pass text, --file, --url, --audio or pipe text on stdin")

// maxStdinBytes caps text read from stdin or a local file
const maxStdinBytes = 8 << 20

// Input names exactly one document source
type Input struct {
	Text  string    // Inline text
	File  string    // Local text, HTML or audio file
	URL   string    // Web page
	Audio string    // Audio file to transcribe
	Stdin io.Reader // Read when no other source is set
}

// SourceInput interprets a batch line: URLs are fetched, audio files are
// transcribed and anything else is read as a local file.
func SourceInput(source string) Input {
	source = strings.TrimSpace(source)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return Input{URL: source}
	case preprocess.IsAudioFile(source):
		return Input{Audio: source}
	default:
		return Input{File: source}
	}
}

// Document is the plain text handed to extraction
type Document struct {
	Source   string        // Where the text came from ("inline", "stdin", a path or URL)
	Title    string        // Page title or a name derived from the source
	Text     string        // Text to extract claims from
	Language string        // Detected language when translation ran
	Usage    *usage.Ledger // External calls spent producing the text
}

// PageFetcher retrieves readable page text
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Loader turns an Input into a Document
type Loader struct {
	fetcher     PageFetcher
	transcriber preprocess.Transcriber
	translator  preprocess.Translator
	target      string
	logger      *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithFetcher enables URL inputs
func WithFetcher(f PageFetcher) LoaderOption {
	return func(l *Loader) { l.fetcher = f }
}

// WithTranscriber enables audio inputs
func WithTranscriber(t preprocess.Transcriber) LoaderOption {
	return func(l *Loader) { l.transcriber = t }
}

// WithTranslator translates every document into target when its language differs
func WithTranslator(t preprocess.Translator, target string) LoaderOption {
	return func(l *Loader) {
		l.translator = t
		l.target = target
	}
}

// WithLoaderLogger sets the logger
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader. Without options it accepts inline text, files and stdin.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrDefault(l.logger)
	return l
}

// Load reads the input and, when a translator is configured, translates it
func (l *Loader) Load(ctx context.Context, in Input) (*Document, error) {
	doc, err := l.read(ctx, in)
	if err != nil {
		return nil, err
	}
	doc.Usage = &usage.Ledger{}

	if l.translator == nil || strings.TrimSpace(doc.Text) == "" {
		return doc, nil
	}
	text, lang, ledger, err := preprocess.ToTarget(ctx, l.translator, doc.Text, l.target)
	doc.Usage.Append(ledger)
	if err != nil {
		return nil, fmt.Errorf("translate %s: %w", doc.Source, err)
	}
	if text != doc.Text {
		l.logger.Info("translated input", "source", doc.Source, "from", lang, "to", l.target)
	}
	doc.Text = text
	doc.Language = lang
	return doc, nil
}

func (l *Loader) read(ctx context.Context, in Input) (*Document, error) {
	set := 0
	for _, s := range []string{in.Text, in.File, in.URL, in.Audio} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("more than one input source given")
	}

	switch {
	case in.Text != "":
		return &Document{Source: "inline", Text: in.Text}, nil

	case in.URL != "":
		if l.fetcher == nil {
			return nil, errors.New("URL input is not available")
		}
		page, err := l.fetcher.Fetch(ctx, in.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", in.URL, err)
		}
		title := page.Title
		if title == "" {
			title = extractSubject(page.FinalURL)
		}
		return &Document{Source: page.FinalURL, Title: title, Text: page.Text}, nil

	case in.Audio != "":
		return l.transcribe(ctx, in.Audio)

	case in.File != "":
		if preprocess.IsAudioFile(in.File) {
			return l.transcribe(ctx, in.File)
		}
		return readFile(in.File)

	case in.Stdin != nil:
		data, err := io.ReadAll(io.LimitReader(in.Stdin, maxStdinBytes))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, ErrNoInput
		}
		return &Document{Source: "stdin", Text: string(data)}, nil
	}
	return nil, ErrNoInput
}

func (l *Loader) transcribe(ctx context.Context, path string) (*Document, error) {
	if l.transcriber == nil {
		return nil, errors.New("audio input needs the openai provider for transcription")
	}
	text, err := l.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", path, err)
	}
	return &Document{Source: path, Title: extractSubject(path), Text: text}, nil
}

func readFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc := &Document{Source: path, Title: extractSubject(path)}
	r := io.LimitReader(f, maxStdinBytes)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		title, text, err := fetch.ExtractText(r)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = text
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc.Text = string(data)
	}
	return doc, nil
}

// extractSubject derives a readable name from a URL or file path
func extractSubject(raw string) string {
	p := raw
	host := ""
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		p = parsed.Path
		host = parsed.Host
	}

	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return host
	}

	segments := strings.Split(p, "/")
	last := segments[len(segments)-1]

	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")
	return last
}
