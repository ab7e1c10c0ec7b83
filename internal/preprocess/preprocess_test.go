package preprocess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/usage"
)

type stubInferencer struct {
	calls   []string
	respond func(stage, user string) (string, error)
}

func (s *stubInferencer) Infer(_ context.Context, stage string, p llm.Prompt, out any) (usage.Record, error) {
	s.calls = append(s.calls, stage)
	rec := usage.Inference(stage, "stub", 10, 10)
	text, err := s.respond(stage, p.User)
	if err != nil {
		return rec, err
	}
	if sp, ok := out.(*string); ok {
		*sp = text
		return rec, nil
	}
	if err := llm.DecodeJSON(text, out); err != nil {
		return rec, err
	}
	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func TestToTarget_SkipsTranslationForTargetLanguage(t *testing.T) {
	stub := &stubInferencer{respond: func(stage, _ string) (string, error) {
		return `{"language":"en-US"}`, nil
	}}

	text, lang, ledger, err := ToTarget(context.Background(), NewLLMTranslator(stub), "Paris is the capital of France.", "en")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)
	assert.Equal(t, "en", lang)
	assert.Equal(t, []string{StageDetect}, stub.calls)
	assert.Equal(t, 1, ledger.Len())
}

func TestToTarget_TranslatesOtherLanguages(t *testing.T) {
	stub := &stubInferencer{respond: func(stage, user string) (string, error) {
		if stage == StageDetect {
			return `{"language":"fr"}`, nil
		}
		return "Paris is the capital of France.", nil
	}}

	text, lang, ledger, err := ToTarget(context.Background(), NewLLMTranslator(stub), "Paris est la capitale de la France.", "en")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)
	assert.Equal(t, "fr", lang)
	assert.Equal(t, []string{StageDetect, StageTranslate}, stub.calls)
	assert.Equal(t, 2, ledger.Len())
}

func TestToTarget_DetectionFailure(t *testing.T) {
	stub := &stubInferencer{respond: func(string, string) (string, error) {
		return `{"language":"not a language!"}`, nil
	}}

	_, _, _, err := ToTarget(context.Background(), NewLLMTranslator(stub), "texte", "en")
	assert.Error(t, err)
}

func TestTranslate_ChunksLongText(t *testing.T) {
	para := strings.Repeat("a", 4000)
	text := para + "\n\n" + para + "\n\n" + para

	stub := &stubInferencer{respond: func(_, user string) (string, error) {
		return fmt.Sprintf("chunk(%d)", len(user)), nil
	}}

	out, rec, err := NewLLMTranslator(stub).Translate(context.Background(), text, "en")
	require.NoError(t, err)
	assert.Equal(t, "chunk(4000)\n\nchunk(4000)\n\nchunk(4000)", out)
	assert.Equal(t, 3, rec.InferenceCalls)
	assert.Equal(t, 30, rec.PromptTokens)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []string{"a\n\nb"}, chunks("a\n\n\n\nb", 100))
	assert.Equal(t, []string{"aaa", "bbb"}, chunks("aaa\n\nbbb", 6))
	assert.Empty(t, chunks("  \n\n ", 10))
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("talk.MP3"))
	assert.True(t, IsAudioFile("/tmp/interview.m4a"))
	assert.False(t, IsAudioFile("notes.txt"))
	assert.False(t, IsAudioFile("noext"))
}

func newWhisper(t *testing.T, handler http.HandlerFunc) *WhisperTranscriber {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	exec := resilience.NewExecutor(nil, resilience.Policy{MaxAttempts: 1}, nil)
	return NewWhisperTranscriber(openai.NewClientWithConfig(cfg), "", exec, nil)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 fake audio"), 0o644))
	return path
}

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	var hits atomic.Int32
	w := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, openai.Whisper1, r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"text":"  Paris is the capital of France.  "}`)
	})

	text, err := w.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWhisperTranscriber_PermanentError(t *testing.T) {
	w := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := w.Transcribe(context.Background(), writeAudio(t))
	require.Error(t, err)

	var failure *resilience.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, resilience.KindPermanent, failure.Kind)
}

func TestWhisperTranscriber_RejectsBadInput(t *testing.T) {
	w := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	_, err = w.Transcribe(context.Background(), txt)
	assert.ErrorContains(t, err, "unsupported audio format")
}
