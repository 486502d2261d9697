package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/api"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/application"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra"
)

type stubBreaker struct {
	procedure *domain.Procedure
	err       error
	calls     int32
}

func (s *stubBreaker) Breakdown(_ context.Context, _ string) (*domain.Procedure, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.procedure, nil
}

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Chat(_ context.Context, _ application.ChatRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubTTS struct {
	audio string
	err   error
}

func (s *stubTTS) Synthesize(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.audio, nil
}

type stubSTT struct {
	text string
}

func (s *stubSTT) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, nil
}

type stubRecorder struct{}

func (stubRecorder) Start(_ context.Context) error { return nil }
func (stubRecorder) Stop() ([]byte, error)         { return []byte("wav"), nil }

type testServer struct {
	srv     *httptest.Server
	breaker *stubBreaker
	chat    *stubChat
	tts     *stubTTS
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ts := &testServer{
		breaker: &stubBreaker{procedure: &domain.Procedure{Steps: []string{"Mix A and B", "Heat to 60C"}}},
		chat:    &stubChat{reply: "Stir gently."},
		tts:     &stubTTS{audio: "bW9jay1hdWRpbw=="},
	}

	store := application.NewSessionStore(time.Hour, logger)
	assistant := application.NewAssistant(store, ts.breaker, ts.chat, ts.tts, &stubSTT{text: "spoken question"}, stubRecorder{}, logger)

	r := chi.NewRouter()
	api.NewHandler(assistant, logger).RegisterRoutes(r)

	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := http.Post(ts.srv.URL+path, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response from %s: %v", path, err)
	}
	return resp, decoded
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp, body := ts.post(t, "/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create session: empty id")
	}
	return id
}

const validInstructions = "Dissolve 5g of salicylic acid in acetic anhydride and reflux."

func TestCreateAndGetSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, err := http.Get(ts.srv.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var view application.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decoding view: %v", err)
	}
	if view.ID != id {
		t.Errorf("id: got %q, want %q", view.ID, id)
	}
	if view.Busy != domain.ActivityNone {
		t.Errorf("busy: %q", view.Busy)
	}
}

func TestGetSession_Unknown(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/sessions/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestBreakdown_ValidationErrorEchoesInput(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, body := ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}

	fieldErrors, ok := body["fieldErrors"].(map[string]any)
	if !ok {
		t.Fatalf("no fieldErrors in response: %v", body)
	}
	if _, ok := fieldErrors["instructions"]; !ok {
		t.Errorf("no instructions field error: %v", fieldErrors)
	}
	if body["input"] != "short" {
		t.Errorf("input not echoed: %v", body["input"])
	}
	if n := atomic.LoadInt32(&ts.breaker.calls); n != 0 {
		t.Errorf("breaker called %d times on invalid input", n)
	}
}

func TestBreakdownThenChat(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, body := ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": validInstructions})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("breakdown status: %d (%v)", resp.StatusCode, body)
	}
	session, _ := body["session"].(map[string]any)
	if session == nil {
		t.Fatalf("no session in breakdown response: %v", body)
	}
	if _, hasNotice := body["notice"]; hasNotice {
		t.Errorf("unexpected notice for non-empty breakdown: %v", body["notice"])
	}

	resp, body = ts.post(t, "/api/sessions/"+id+"/chat", map[string]string{"query": "why reflux?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status: %d (%v)", resp.StatusCode, body)
	}
	if body["reply"] != "Stir gently." {
		t.Errorf("reply: %v", body["reply"])
	}
	session, _ = body["session"].(map[string]any)
	history, _ := session["chatHistory"].([]any)
	if len(history) != 2 {
		t.Errorf("history: got %d turns, want 2", len(history))
	}
}

func TestBreakdown_EmptyResultNotice(t *testing.T) {
	ts := newTestServer(t)
	ts.breaker.procedure = &domain.Procedure{}
	id := ts.createSession(t)

	resp, body := ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": validInstructions})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	notice, _ := body["notice"].(string)
	if !strings.Contains(notice, "did not result in distinct steps") {
		t.Errorf("notice: %q", notice)
	}
}

func TestChat_WithoutProcedure(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, _ := ts.post(t, "/api/sessions/"+id+"/chat", map[string]string{"query": "hello?"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status: got %d, want 409", resp.StatusCode)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": validInstructions})

	ts.chat.err = &infra.UpstreamError{Provider: "gemini", Status: 429, Body: "quota"}
	resp, body := ts.post(t, "/api/sessions/"+id+"/chat", map[string]string{"query": "anyone?"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", resp.StatusCode)
	}
	if body["provider"] != "gemini" {
		t.Errorf("provider: %v", body["provider"])
	}
	if body["upstreamStatus"] != float64(429) {
		t.Errorf("upstreamStatus: %v", body["upstreamStatus"])
	}
	if body["input"] != "anyone?" {
		t.Errorf("input not echoed: %v", body["input"])
	}
}

func TestSpeechNotConfigured(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": validInstructions})
	ts.post(t, "/api/sessions/"+id+"/chat", map[string]string{"query": "why reflux?"})

	waitForIdle(t, ts, id)

	ts.tts.err = fmt.Errorf("elevenlabs API key: %w", infra.ErrNotConfigured)
	resp, _ := ts.post(t, "/api/sessions/"+id+"/replay", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestStepNavigation(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	ts.post(t, "/api/sessions/"+id+"/breakdown", map[string]string{"instructions": validInstructions})

	resp, body := ts.post(t, "/api/sessions/"+id+"/step/next", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if body["stepIndex"] != float64(1) {
		t.Errorf("stepIndex: %v", body["stepIndex"])
	}

	_, body = ts.post(t, "/api/sessions/"+id+"/step/previous", nil)
	if body["stepIndex"] != float64(0) {
		t.Errorf("stepIndex after previous: %v", body["stepIndex"])
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	payload := "d2VibS1ieXRlcw==" // base64 of webm-bytes
	resp, body := ts.post(t, "/api/sessions/"+id+"/transcribe", map[string]string{"audioBase64": payload})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d (%v)", resp.StatusCode, body)
	}
	if body["transcribedText"] != "spoken question" {
		t.Errorf("transcribedText: %v", body["transcribedText"])
	}
}

func TestRecordEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, _ := ts.post(t, "/api/sessions/"+id+"/record/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stop without start: got %d, want 409", resp.StatusCode)
	}

	resp, body := ts.post(t, "/api/sessions/"+id+"/record/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status: %d (%v)", resp.StatusCode, body)
	}

	// Recording blocks competing triggers.
	resp, _ = ts.post(t, "/api/sessions/"+id+"/record/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start: got %d, want 409", resp.StatusCode)
	}

	resp, body = ts.post(t, "/api/sessions/"+id+"/record/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status: %d (%v)", resp.StatusCode, body)
	}
	if body["transcribedText"] != "spoken question" {
		t.Errorf("transcribedText: %v", body["transcribedText"])
	}
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	resp, err := http.Post(ts.srv.URL+"/api/sessions/"+id+"/breakdown", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func waitForIdle(t *testing.T, ts *testServer, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.srv.URL + "/api/sessions/" + id)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		var view application.SessionView
		err = json.NewDecoder(resp.Body).Decode(&view)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decoding view: %v", err)
		}
		if view.Busy == domain.ActivityNone {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never went idle")
}
