package application

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
)

const speechTimeout = 60 * time.Second

// NoStepsNotice is shown when a breakdown succeeds without producing any
// structured content. That outcome is a success, not an error.
const NoStepsNotice = "The instructions provided did not result in distinct steps. Try rephrasing or adding more detail."

// Assistant orchestrates the per-session state machine: breakdown, step
// navigation, chat with spoken replies, and voice input. Every provider call
// happens outside the session lock; completions re-check the generation the
// call started under and are discarded when the session has moved on.
type Assistant struct {
	sessions *SessionStore
	breaker  ProcedureBreaker
	chat     ChatResponder
	tts      SpeechSynthesizer
	stt      Transcriber
	recorder Recorder
	logger   *slog.Logger
}

func NewAssistant(
	sessions *SessionStore,
	breaker ProcedureBreaker,
	chat ChatResponder,
	tts SpeechSynthesizer,
	stt Transcriber,
	recorder Recorder,
	logger *slog.Logger,
) *Assistant {
	return &Assistant{
		sessions: sessions,
		breaker:  breaker,
		chat:     chat,
		tts:      tts,
		stt:      stt,
		recorder: recorder,
		logger:   logger,
	}
}

// SessionView is a consistent snapshot of session state for the UI.
type SessionView struct {
	ID               string            `json:"id"`
	Procedure        *domain.Procedure `json:"procedure,omitempty"`
	Instructions     string            `json:"instructions,omitempty"`
	StepIndex        int               `json:"stepIndex"`
	History          domain.History    `json:"chatHistory"`
	PendingSpeech    string            `json:"pendingSpeechText,omitempty"`
	AudioBase64      string            `json:"audioBase64,omitempty"`
	SpeechError      string            `json:"speechError,omitempty"`
	PendingQuery     string            `json:"pendingQuery,omitempty"`
	Busy             domain.Activity   `json:"busy"`
	BreakdownPending bool              `json:"breakdownPending"`
}

func viewOf(s *domain.Session) SessionView {
	history := make(domain.History, len(s.History))
	copy(history, s.History)

	return SessionView{
		ID:               s.ID,
		Procedure:        s.Procedure,
		Instructions:     s.Instructions,
		StepIndex:        s.StepIndex,
		History:          history,
		PendingSpeech:    s.PendingSpeech,
		AudioBase64:      s.AudioBase64,
		SpeechError:      s.SpeechError,
		PendingQuery:     s.PendingQuery,
		Busy:             s.Busy,
		BreakdownPending: s.BreakdownPending,
	}
}

// NewSession creates an empty session and returns its ID.
func (a *Assistant) NewSession() string {
	return a.sessions.Create()
}

// Snapshot returns the current state of a session.
func (a *Assistant) Snapshot(id string) (SessionView, error) {
	var view SessionView
	err := a.sessions.With(id, func(s *domain.Session) error {
		view = viewOf(s)
		return nil
	})
	return view, err
}

// BreakdownResult is the outcome of a successful breakdown.
type BreakdownResult struct {
	Session SessionView
	Notice  string
}

// Breakdown validates the instructions, delegates decomposition to the
// text-generation provider and installs the resulting procedure, resetting
// the step pointer, chat history and speech state. An all-empty result is a
// success with a distinct notice. On failure the previous procedure, if any,
// is left untouched.
func (a *Assistant) Breakdown(ctx context.Context, id, instructions string) (BreakdownResult, error) {
	if err := ValidateInstructions(instructions); err != nil {
		return BreakdownResult{}, err
	}

	err := a.sessions.With(id, func(s *domain.Session) error {
		if s.BreakdownPending {
			return &domain.BusyError{Current: domain.ActivityBreakdown, Requested: domain.ActivityBreakdown}
		}
		s.BreakdownPending = true
		s.Touch()
		return nil
	})
	if err != nil {
		return BreakdownResult{}, err
	}

	procedure, callErr := a.breaker.Breakdown(ctx, instructions)

	var result BreakdownResult
	err = a.sessions.With(id, func(s *domain.Session) error {
		s.BreakdownPending = false
		if callErr != nil {
			return fmt.Errorf("breaking down instructions: %w", callErr)
		}
		s.SetProcedure(procedure, instructions)
		result.Session = viewOf(s)
		return nil
	})
	if err != nil {
		return BreakdownResult{}, err
	}

	if procedure.Empty() {
		result.Notice = NoStepsNotice
	}

	a.logger.Info("breakdown complete",
		"session_id", id,
		"steps", len(procedure.Steps),
		"warnings", len(procedure.Warnings),
	)
	return result, nil
}

// NextStep advances the step pointer within bounds. Synchronous, no network.
func (a *Assistant) NextStep(id string) (SessionView, error) {
	var view SessionView
	err := a.sessions.With(id, func(s *domain.Session) error {
		s.NextStep()
		view = viewOf(s)
		return nil
	})
	return view, err
}

// PreviousStep moves the step pointer back within bounds.
func (a *Assistant) PreviousStep(id string) (SessionView, error) {
	var view SessionView
	err := a.sessions.With(id, func(s *domain.Session) error {
		s.PreviousStep()
		view = viewOf(s)
		return nil
	})
	return view, err
}

// ChatResult is the outcome of a chat submission. The reply is recorded in
// the history before speech synthesis starts; synthesis failures are
// non-fatal to the turn.
type ChatResult struct {
	Reply   string
	Session SessionView
}

// Chat validates the query, dispatches it with full context (original
// instructions, procedure, step pointer, prior non-system history) and on
// success appends exactly two turns, user then assistant. The assistant reply
// is then synthesized to speech in the background.
func (a *Assistant) Chat(ctx context.Context, id, query string) (ChatResult, error) {
	if err := ValidateQuery(query); err != nil {
		return ChatResult{}, err
	}

	var (
		req ChatRequest
		gen uint64
	)
	err := a.sessions.With(id, func(s *domain.Session) error {
		if !s.CanChat() {
			return ErrNoProcedure
		}
		if beginErr := s.Begin(domain.ActivityChat); beginErr != nil {
			return beginErr
		}
		req = ChatRequest{
			Instructions: s.Instructions,
			Procedure:    s.Procedure,
			StepNumber:   s.StepIndex + 1,
			History:      s.History.WithoutSystem(),
			Query:        query,
		}
		gen = s.Generation
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}

	reply, callErr := a.chat.Chat(ctx, req)

	var result ChatResult
	err = a.sessions.With(id, func(s *domain.Session) error {
		s.End(domain.ActivityChat)
		if callErr != nil {
			return fmt.Errorf("chat request failed: %w", callErr)
		}
		if s.Generation != gen {
			return ErrStaleResult
		}
		s.AppendExchange(query, reply)
		if speechErr := ValidateSpeechText(reply); speechErr != nil {
			s.SpeechError = speechErr.Error()
		} else if beginErr := s.Begin(domain.ActivitySpeaking); beginErr == nil {
			go a.synthesizeReply(id, reply, s.Generation)
		}
		// Turn is recorded either way; speech is best effort.
		result.Session = viewOf(s)
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}

	result.Reply = reply
	return result, nil
}

// synthesizeReply renders the assistant reply to audio in the background.
// The completion is applied only if the session generation still matches.
func (a *Assistant) synthesizeReply(id, text string, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), speechTimeout)
	defer cancel()

	audio, err := a.tts.Synthesize(ctx, text)
	if err != nil {
		a.logger.Error("speech synthesis failed", "session_id", id, "error", err)
	}

	applyErr := a.sessions.With(id, func(s *domain.Session) error {
		s.End(domain.ActivitySpeaking)
		if s.Generation != gen {
			return nil
		}
		if err != nil {
			s.SpeechError = err.Error()
			return nil
		}
		s.AudioBase64 = audio
		return nil
	})
	if applyErr != nil {
		a.logger.Warn("discarding speech result", "session_id", id, "error", applyErr)
	}
}

// Replay re-synthesizes the last assistant reply on demand.
func (a *Assistant) Replay(ctx context.Context, id string) (string, error) {
	var (
		text string
		gen  uint64
	)
	err := a.sessions.With(id, func(s *domain.Session) error {
		if s.PendingSpeech == "" {
			return ErrNothingToReplay
		}
		if beginErr := s.Begin(domain.ActivitySpeaking); beginErr != nil {
			return beginErr
		}
		text = s.PendingSpeech
		gen = s.Generation
		s.AudioBase64 = ""
		s.SpeechError = ""
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := ValidateSpeechText(text); err != nil {
		a.endActivity(id, domain.ActivitySpeaking)
		return "", err
	}

	audio, callErr := a.tts.Synthesize(ctx, text)

	err = a.sessions.With(id, func(s *domain.Session) error {
		s.End(domain.ActivitySpeaking)
		if callErr != nil {
			s.SpeechError = callErr.Error()
			return fmt.Errorf("generating speech: %w", callErr)
		}
		if s.Generation != gen {
			return ErrStaleResult
		}
		s.AudioBase64 = audio
		return nil
	})
	if err != nil {
		return "", err
	}
	return audio, nil
}

// Transcribe converts browser-recorded base64 webm audio to text and places
// it in the pending query field. The user submits it explicitly; nothing is
// auto-sent.
func (a *Assistant) Transcribe(ctx context.Context, id, audioBase64 string) (string, error) {
	if err := ValidateAudioPayload(audioBase64); err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", fieldError("audio", "Audio data is not valid base64.")
	}

	return a.transcribeBytes(ctx, id, data, "audio.webm")
}

func (a *Assistant) transcribeBytes(ctx context.Context, id string, data []byte, filename string) (string, error) {
	var gen uint64
	err := a.sessions.With(id, func(s *domain.Session) error {
		if beginErr := s.Begin(domain.ActivityTranscribing); beginErr != nil {
			return beginErr
		}
		gen = s.Generation
		return nil
	})
	if err != nil {
		return "", err
	}

	text, callErr := a.stt.Transcribe(ctx, data, filename)

	err = a.sessions.With(id, func(s *domain.Session) error {
		s.End(domain.ActivityTranscribing)
		if callErr != nil {
			return fmt.Errorf("transcribing audio: %w", callErr)
		}
		if s.Generation != gen {
			return ErrStaleResult
		}
		s.PendingQuery = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// StartRecording acquires the server microphone and begins capturing.
func (a *Assistant) StartRecording(ctx context.Context, id string) error {
	err := a.sessions.With(id, func(s *domain.Session) error {
		return s.Begin(domain.ActivityRecording)
	})
	if err != nil {
		return err
	}

	if err := a.recorder.Start(ctx); err != nil {
		a.endActivity(id, domain.ActivityRecording)
		return fmt.Errorf("starting recording: %w", err)
	}

	a.logger.Info("recording started", "session_id", id)
	return nil
}

// StopRecording finalizes the capture, always releasing the microphone, then
// transcribes it and populates the pending query field.
func (a *Assistant) StopRecording(ctx context.Context, id string) (string, error) {
	err := a.sessions.With(id, func(s *domain.Session) error {
		if s.Busy != domain.ActivityRecording {
			return ErrNotRecording
		}
		s.End(domain.ActivityRecording)
		return nil
	})
	if err != nil {
		return "", err
	}

	// Stop releases the device even when it fails.
	data, recErr := a.recorder.Stop()
	if recErr != nil {
		return "", fmt.Errorf("stopping recording: %w", recErr)
	}
	if len(data) == 0 {
		return "", fieldError("audio", "Audio data cannot be empty.")
	}

	return a.transcribeBytes(ctx, id, data, "recording.wav")
}

func (a *Assistant) endActivity(id string, activity domain.Activity) {
	if err := a.sessions.With(id, func(s *domain.Session) error {
		s.End(activity)
		return nil
	}); err != nil {
		a.logger.Warn("clearing activity", "session_id", id, "error", err)
	}
}
