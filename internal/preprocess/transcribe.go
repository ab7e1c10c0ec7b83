// Package preprocess turns non-text or non-English input into English text
// before extraction: speech-to-text and language detection with translation.
package preprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/resilience"
)

// audioExtensions lists the formats accepted by the transcription endpoint
var audioExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".mpeg": true, ".mpga": true,
	".m4a": true, ".wav": true, ".webm": true, ".ogg": true, ".flac": true,
}

// IsAudioFile reports whether path has a supported audio extension
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Transcriber converts an audio file to text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	exec   *resilience.Executor
	logger *slog.Logger
}

// NewWhisperTranscriber creates a transcriber. exec may be nil for a private
// executor with default retry settings.
func NewWhisperTranscriber(client *openai.Client, model string, exec *resilience.Executor, logger *slog.Logger) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	if exec == nil {
		exec = resilience.NewExecutor(nil, resilience.DefaultPolicy(), logger)
	}
	return &WhisperTranscriber{client: client, model: model, exec: exec, logger: logging.OrDefault(logger)}
}

// Transcribe uploads the file and returns its transcript
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("audio file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("audio file: %s is a directory", path)
	}
	if !IsAudioFile(path) {
		return "", fmt.Errorf("unsupported audio format: %s", filepath.Ext(path))
	}

	var text string
	err = w.exec.Do(ctx, "transcribe", func(ctx context.Context) error {
		resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    w.model,
			FilePath: path,
		})
		if err != nil {
			return llm.ClassifyOpenAIError(err)
		}
		text = strings.TrimSpace(resp.Text)
		if text == "" {
			return resilience.Malformed(fmt.Errorf("empty transcript"))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	w.logger.Debug("audio transcribed", "file", path, "bytes", info.Size(), "chars", len(text))
	return text, nil
}
