package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kallevis/talkdown/internal/game"
	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/internal/replystore"
	"github.com/kallevis/talkdown/internal/turn"
	"github.com/kallevis/talkdown/pkg/provider/emotion"
	emotionmock "github.com/kallevis/talkdown/pkg/provider/emotion/mock"
	"github.com/kallevis/talkdown/pkg/provider/llm"
	llmmock "github.com/kallevis/talkdown/pkg/provider/llm/mock"
	"github.com/kallevis/talkdown/pkg/provider/stt"
	sttmock "github.com/kallevis/talkdown/pkg/provider/stt/mock"
	ttsmock "github.com/kallevis/talkdown/pkg/provider/tts/mock"
)

const oracleJSON = `{"npcReply": "Who gave you this number?", "persuasion": 5, "confidence": 5, "hesitation": 5, "consistency": 6, "suspicionDelta": 1, "newSuspicion": 51, "shouldHangUp": false, "revealCode": false, "npcMood": "suspicious"}`

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	metrics := testMetrics(t)
	oracle := &llmmock.Provider{Response: &llm.CompletionResponse{Content: oracleJSON}}
	eval := game.NewEvaluator(oracle, level.DefaultTable(), replystore.NewMemoryStore(64), metrics, game.EvaluatorConfig{})

	cfg := Config{
		Evaluator:    eval,
		Metrics:      metrics,
		STT:          &sttmock.Provider{Result: &stt.Result{Text: "let me in, please", Language: "en", Confidence: 0.93}},
		TTS:          &ttsmock.Provider{},
		Emotion:      &emotionmock.Provider{Prediction: &emotion.Prediction{Label: "sad", Confidence: 0.8}},
		DefaultVoice: "gravel",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeOutput(t *testing.T, rec *httptest.ResponseRecorder) *turn.Output {
	t.Helper()
	var out turn.Output
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return &out
}

func TestEvaluateEndpoint(t *testing.T) {
	h := testServer(t, nil).Routes()

	rec := postJSON(t, h, "/v1/evaluate", `{"sessionId": "s1", "transcript": "open up", "level": "warden", "suspicion": 50, "round": 1, "stage": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	out := decodeOutput(t, rec)
	if out.NPCReply == "" {
		t.Error("empty npcReply")
	}
	if out.NewSuspicion < 0 || out.NewSuspicion > 100 {
		t.Errorf("newSuspicion %d out of range", out.NewSuspicion)
	}
}

func TestEvaluateRejectsMalformed(t *testing.T) {
	h := testServer(t, nil).Routes()

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"transcript": `},
		{"missing transcript", `{"level": "warden"}`},
		{"missing level", `{"transcript": "hi"}`},
		{"wrong transcript type", `{"transcript": 5, "level": "warden"}`},
		{"bad history entry", `{"transcript": "hi", "level": "warden", "history": [{"role": "ghost", "content": "boo"}]}`},
		{"unknown level", `{"transcript": "hi", "level": "bank_vault"}`},
		{"blank transcript", `{"transcript": "   ", "level": "warden"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/v1/evaluate", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
			}
			var er errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&er); err != nil || er.Error == "" {
				t.Errorf("expected error JSON, got %s", rec.Body)
			}
		})
	}
}

func TestEvaluateAlwaysAnswersOnOracleFailure(t *testing.T) {
	h := testServer(t, func(cfg *Config) {
		metrics := cfg.Metrics
		oracle := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "static noise, no json here"}}
		cfg.Evaluator = game.NewEvaluator(oracle, level.DefaultTable(), replystore.NewMemoryStore(64), metrics, game.EvaluatorConfig{})
	}).Routes()

	rec := postJSON(t, h, "/v1/evaluate", `{"transcript": "hello", "level": "foreman", "suspicion": 40}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the oracle babbles", rec.Code)
	}
	out := decodeOutput(t, rec)
	if out.NPCReply == "" {
		t.Error("fallback produced no reply")
	}
}

func multipartTurn(t *testing.T, audio []byte, meta string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("audio", "clip.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(audio); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if meta != "" {
		if err := w.WriteField("meta", meta); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestTurnsEndpoint(t *testing.T) {
	h := testServer(t, nil).Routes()

	body, ct := multipartTurn(t, []byte("RIFF-fake-wav"), `{"sessionId": "s9", "level": "goodboy", "suspicion": 20, "round": 2, "stage": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		turn.Output
		Transcript        string  `json:"transcript"`
		PlayerEmotion     string  `json:"playerEmotion"`
		EmotionConfidence float64 `json:"emotionConfidence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Transcript != "let me in, please" {
		t.Errorf("transcript = %q", resp.Transcript)
	}
	if resp.PlayerEmotion != "sad" || resp.EmotionConfidence != 0.8 {
		t.Errorf("emotion = %q/%v", resp.PlayerEmotion, resp.EmotionConfidence)
	}
	if resp.NPCReply == "" {
		t.Error("empty npcReply")
	}
}

func TestTurnsEmotionFailureDegrades(t *testing.T) {
	h := testServer(t, func(cfg *Config) {
		cfg.Emotion = &emotionmock.Provider{Err: io.ErrUnexpectedEOF}
	}).Routes()

	body, ct := multipartTurn(t, []byte("RIFF-fake-wav"), `{"level": "warden"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := resp["playerEmotion"]; ok {
		t.Error("playerEmotion present despite classifier failure")
	}
	if resp["transcript"] != "let me in, please" {
		t.Errorf("transcript = %v", resp["transcript"])
	}
}

func TestTurnsTranscriptionFailure(t *testing.T) {
	h := testServer(t, func(cfg *Config) {
		cfg.STT = &sttmock.Provider{Err: io.ErrUnexpectedEOF}
	}).Routes()

	body, ct := multipartTurn(t, []byte("RIFF-fake-wav"), `{"level": "warden"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestTurnsMissingAudioPart(t *testing.T) {
	h := testServer(t, nil).Routes()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("meta", `{"level": "warden"}`); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/turns", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestTurnsWithoutSTTBackend(t *testing.T) {
	h := testServer(t, func(cfg *Config) { cfg.STT = nil }).Routes()

	body, ct := multipartTurn(t, []byte("x"), "")
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSpeakEndpoint(t *testing.T) {
	ttsProv := &ttsmock.Provider{Audio: []byte("mp3-bytes"), ContentType: "audio/mpeg"}
	h := testServer(t, func(cfg *Config) { cfg.TTS = ttsProv }).Routes()

	rec := postJSON(t, h, "/v1/speak", `{"text": "We're closed.", "mood": "hostile", "suspicion": 80}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if len(ttsProv.Requests) != 1 || ttsProv.Requests[0].Voice != "gravel" {
		t.Errorf("requests = %+v, want default voice applied", ttsProv.Requests)
	}
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	h := testServer(t, nil).Routes()
	rec := postJSON(t, h, "/v1/speak", `{"text": "   "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestSpeakWithoutBackend(t *testing.T) {
	h := testServer(t, func(cfg *Config) { cfg.TTS = nil }).Routes()
	rec := postJSON(t, h, "/v1/speak", `{"text": "hello"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestLevelsEndpoint(t *testing.T) {
	h := testServer(t, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/levels", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var infos []levelInfo
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len = %d, want 3", len(infos))
	}
	seen := map[string]bool{}
	for _, info := range infos {
		seen[info.ID] = true
		if info.Title == "" || info.Stages < 1 || info.Blurb == "" {
			t.Errorf("incomplete entry: %+v", info)
		}
	}
	for _, id := range []string{"warden", "goodboy", "foreman"} {
		if !seen[id] {
			t.Errorf("missing level %q", id)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := testServer(t, nil).Routes()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}
