package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kallevis/talkdown/internal/game"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/internal/turn"
	"github.com/kallevis/talkdown/pkg/provider/emotion"
	"github.com/kallevis/talkdown/pkg/provider/stt"
	"github.com/kallevis/talkdown/pkg/provider/tts"
)

// errorResponse is the JSON body for client-visible failures.
type errorResponse struct {
	Error string `json:"error"`
}

// turnsResponse is the audio turn endpoint's response: the evaluated output
// plus what the collaborators heard.
type turnsResponse struct {
	*turn.Output
	Transcript        string  `json:"transcript"`
	PlayerEmotion     string  `json:"playerEmotion,omitempty"`
	EmotionConfidence float64 `json:"emotionConfidence,omitempty"`
}

// speakRequest is the speech synthesis request body.
type speakRequest struct {
	Text      string `json:"text"`
	Mood      string `json:"mood"`
	Suspicion int    `json:"suspicion"`
	Voice     string `json:"voice"`
}

// levelInfo is one entry in the level listing.
type levelInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Stages int    `json:"stages"`
	Blurb  string `json:"blurb"`
}

// handleEvaluate runs one JSON turn through the evaluation pipeline.
// Malformed payloads get a 422; every structurally valid turn gets a 200
// with a complete output, no matter what the oracle did.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "request body is not a JSON object")
		return
	}
	if err := evaluateSchema.Validate(map[string]any(payload)); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "payload shape invalid: "+err.Error())
		return
	}

	in, err := game.Sanitize(payload, s.cfg.Evaluator.Levels())
	if err != nil {
		var ve *game.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusUnprocessableEntity, ve.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out := s.cfg.Evaluator.Evaluate(r.Context(), in)
	writeJSON(w, http.StatusOK, out)
}

// handleTurns accepts a multipart audio turn: an "audio" file part and a
// "meta" JSON part with the non-transcript turn fields. Transcription and
// emotion classification run concurrently; a failed classification degrades
// to an emotionless turn instead of failing it.
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.STT == nil {
		writeError(w, http.StatusServiceUnavailable, "no transcription backend configured")
		return
	}

	if err := r.ParseMultipartForm(stt.MaxAudioBytes + 1<<20); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed multipart body")
		return
	}
	audio, err := readAudioPart(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var payload map[string]any
	if meta := r.FormValue("meta"); meta != "" {
		if err := json.Unmarshal([]byte(meta), &payload); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "meta part is not a JSON object")
			return
		}
	} else {
		payload = map[string]any{}
	}

	var (
		transcript *stt.Result
		prediction *emotion.Prediction
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		transcript, err = s.cfg.STT.Transcribe(gctx, audio, r.FormValue("language"))
		return err
	})
	g.Go(func() error {
		if s.cfg.Emotion == nil {
			return nil
		}
		p, err := s.cfg.Emotion.Classify(gctx, audio)
		if err != nil {
			// Best-effort by contract.
			observe.Logger(gctx).Warn("emotion classification failed", "error", err)
			s.cfg.Metrics.RecordProviderError(gctx, "emotion", "classify")
			return nil
		}
		prediction = p
		return nil
	})
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "transcription failed: "+err.Error())
		return
	}
	if strings.TrimSpace(transcript.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "no speech detected in upload")
		return
	}

	payload["transcript"] = transcript.Text
	if prediction != nil {
		payload["playerEmotion"] = prediction.Label
		payload["emotionConfidence"] = prediction.Confidence
	}

	in, err := game.Sanitize(payload, s.cfg.Evaluator.Levels())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out := s.cfg.Evaluator.Evaluate(r.Context(), in)
	resp := turnsResponse{Output: out, Transcript: transcript.Text}
	if prediction != nil {
		resp.PlayerEmotion = prediction.Label
		resp.EmotionConfidence = prediction.Confidence
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSpeak synthesizes one NPC line and streams the audio back.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TTS == nil {
		writeError(w, http.StatusServiceUnavailable, "no speech synthesis backend configured")
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.DefaultVoice
	}

	stream, contentType, err := s.cfg.TTS.Synthesize(r.Context(), tts.Request{
		Text:      req.Text,
		Mood:      req.Mood,
		Suspicion: req.Suspicion,
		Voice:     voice,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("speech synthesis failed", "error", err)
		s.cfg.Metrics.RecordProviderError(r.Context(), "tts", "synthesize")
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, stream); err != nil {
		observe.Logger(r.Context()).Warn("audio stream interrupted", "error", err)
	}
}

// handleLevels lists the configured levels for the client's level picker.
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels := s.cfg.Evaluator.Levels().List()
	infos := make([]levelInfo, 0, len(levels))
	for _, lvl := range levels {
		infos = append(infos, levelInfo{
			ID:     lvl.ID,
			Title:  lvl.Title,
			Stages: lvl.FinalStage(),
			Blurb:  blurb(lvl.Persona),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// readAudioPart extracts and size-checks the uploaded clip.
func readAudioPart(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, errors.New("audio file part is required")
	}
	defer file.Close()

	if header.Size > stt.MaxAudioBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", stt.MaxAudioBytes)
	}
	audio, err := io.ReadAll(io.LimitReader(file, stt.MaxAudioBytes+1))
	if err != nil {
		return nil, errors.New("audio part unreadable")
	}
	if len(audio) == 0 {
		return nil, errors.New("audio part is empty")
	}
	if len(audio) > stt.MaxAudioBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", stt.MaxAudioBytes)
	}
	return audio, nil
}

// blurb returns the first sentence of a persona for the level listing.
func blurb(persona string) string {
	if i := strings.Index(persona, ". "); i >= 0 {
		return persona[:i+1]
	}
	return persona
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
