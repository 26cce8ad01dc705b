package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSpeaker struct {
	name  string
	audio []byte
	err   error
	calls int
	opts  SpeakOptions
}

func (s *stubSpeaker) Name() string { return s.name }

func (s *stubSpeaker) Speak(_ context.Context, _ string, opts SpeakOptions) ([]byte, error) {
	s.calls++
	s.opts = opts
	return s.audio, s.err
}

func TestSpeechChain(t *testing.T) {
	t.Run("first provider wins", func(t *testing.T) {
		first := &stubSpeaker{name: "elevenlabs", audio: []byte("mp3")}
		second := &stubSpeaker{name: "openai", audio: []byte("other")}
		chain := NewSpeechChain(zap.NewNop(), first, second)

		got := chain.Speak(context.Background(), "hi", SpeakOptions{APIKey: "override"})
		assert.Equal(t, Speech{Audio: []byte("mp3"), ContentType: "audio/mpeg", Provider: "elevenlabs", Text: "hi"}, got)
		assert.Equal(t, "override", first.opts.APIKey)
		assert.Zero(t, second.calls)
	})

	t.Run("falls through to the next provider", func(t *testing.T) {
		first := &stubSpeaker{name: "elevenlabs", err: ErrUpstream}
		second := &stubSpeaker{name: "openai", audio: []byte("tts")}
		got := NewSpeechChain(zap.NewNop(), first, second).Speak(context.Background(), "hi", SpeakOptions{})
		assert.Equal(t, "openai", got.Provider)
		assert.False(t, got.Local)
	})

	t.Run("local synthesis when everything fails", func(t *testing.T) {
		first := &stubSpeaker{name: "elevenlabs", err: ErrNotConfigured}
		got := NewSpeechChain(zap.NewNop(), first).Speak(context.Background(), "hi", SpeakOptions{})
		assert.Equal(t, Speech{Local: true, Text: "hi"}, got)
	})
}

func TestElevenLabsSpeaker(t *testing.T) {
	keys := make(chan string, 2)
	bodies := make(chan elevenLabsRequest, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		keys <- r.Header.Get("xi-api-key")
		var body elevenLabsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	s := NewElevenLabsSpeaker(ElevenLabsConfig{APIKey: "server-key", VoiceID: "voice-1", BaseURL: srv.URL})

	audio, err := s.Speak(context.Background(), "Hello!", SpeakOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
	assert.Equal(t, "server-key", <-keys)
	body := <-bodies
	assert.Equal(t, "Hello!", body.Text)
	assert.Equal(t, "eleven_multilingual_v2", body.ModelID)
	assert.Equal(t, elevenLabsSettings{Stability: 0.5, SimilarityBoost: 0.5, Style: 0.2, UseSpeakerBoost: true}, body.VoiceSettings)

	_, err = s.Speak(context.Background(), "Hello!", SpeakOptions{APIKey: "doll-key"})
	require.NoError(t, err)
	assert.Equal(t, "doll-key", <-keys)
}

func TestElevenLabsSpeakerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewElevenLabsSpeaker(ElevenLabsConfig{APIKey: "bad", VoiceID: "voice-1", BaseURL: srv.URL})
	_, err := s.Speak(context.Background(), "Hello!", SpeakOptions{})
	assert.True(t, errors.Is(err, ErrUpstream))

	unconfigured := NewElevenLabsSpeaker(ElevenLabsConfig{VoiceID: "voice-1", BaseURL: srv.URL})
	_, err = unconfigured.Speak(context.Background(), "Hello!", SpeakOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAISpeaker(t *testing.T) {
	assert.Nil(t, NewOpenAISpeaker("", "", ""))

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("openai-audio"))
	}))
	defer srv.Close()

	s := NewOpenAISpeaker("sk-test", srv.URL+"/v1", "")
	audio, err := s.Speak(context.Background(), "Hello!", SpeakOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("openai-audio"), audio)
	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "nova", body["voice"])
	assert.Equal(t, "Hello!", body["input"])
}
