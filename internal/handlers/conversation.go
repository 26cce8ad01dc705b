package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/petermazzocco/go-doll-studio/internal/ai"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"github.com/petermazzocco/go-doll-studio/internal/metrics"
)

type chatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

func ChatHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service, chat *ai.ChatClient) {
	var req chatRequest
	if !decodeJSON(w, r, &req, "Message is required") {
		return
	}

	p, err := svc.Persona(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	reply := chat.Reply(r.Context(), ai.Persona{Name: p.Name, Traits: p.Traits}, req.Message)
	metrics.RecordChat(reply.Fallback)
	writeJSON(w, http.StatusOK, reply)
}

type speechRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

type localSpeechResponse struct {
	Text      string `json:"text"`
	Synthesis string `json:"synthesis"`
}

// SpeechHandler answers with audio bytes, or with JSON asking the client to
// synthesize the text itself when no provider could.
func SpeechHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service, speech *ai.SpeechChain) {
	var req speechRequest
	if !decodeJSON(w, r, &req, "Text is required") {
		return
	}

	p, err := svc.Persona(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := speech.Speak(r.Context(), req.Text, ai.SpeakOptions{APIKey: p.APIKey})
	if out.Local {
		metrics.RecordSpeech("local")
		writeJSON(w, http.StatusOK, localSpeechResponse{Text: out.Text, Synthesis: "local"})
		return
	}

	metrics.RecordSpeech(out.Provider)
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Audio)))
	w.Header().Set("X-Speech-Provider", out.Provider)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Audio)
}
