package domain

import (
	"fmt"
	"time"
)

// Activity identifies what a session is currently busy with from the user's
// perspective. A single tag instead of independent booleans rules out
// impossible combinations (recording while transcribing, two chats in flight).
type Activity string

const (
	ActivityNone         Activity = "none"
	ActivityChat         Activity = "chat"
	ActivitySpeaking     Activity = "speaking"
	ActivityRecording    Activity = "recording"
	ActivityTranscribing Activity = "transcribing"

	// ActivityBreakdown is tracked by Session.BreakdownPending rather than
	// the Busy tag; it appears only in conflict reports.
	ActivityBreakdown Activity = "breakdown"
)

// BusyError reports a rejected trigger: the session is already occupied with
// a conflicting activity.
type BusyError struct {
	Current   Activity
	Requested Activity
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("session busy with %s, cannot start %s", e.Current, e.Requested)
}

// Session is the per-client state aggregate. It lives in memory only and is
// discarded when the session expires; nothing here is persisted.
type Session struct {
	ID           string
	Procedure    *Procedure
	Instructions string // verbatim input that produced Procedure
	StepIndex    int
	History      History

	PendingSpeech string // last assistant reply eligible for audio replay
	AudioBase64   string // most recent synthesized audio for that reply
	SpeechError   string // non-fatal synthesis failure for the last reply
	PendingQuery  string // transcribed text waiting for the user to submit

	Busy             Activity
	BreakdownPending bool

	// Generation is bumped on every procedure replacement. Async completions
	// carry the generation they started under and are discarded on mismatch.
	Generation uint64

	LastActive time.Time
}

func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		Busy:       ActivityNone,
		LastActive: time.Now(),
	}
}

// Begin marks the session busy with the given activity, failing when another
// one is already in flight. Callers surface the failure as a conflict rather
// than queueing the request.
func (s *Session) Begin(a Activity) error {
	if s.Busy != ActivityNone {
		return &BusyError{Current: s.Busy, Requested: a}
	}
	s.Busy = a
	s.Touch()
	return nil
}

// End clears the busy tag if the given activity still owns it.
func (s *Session) End(a Activity) {
	if s.Busy == a {
		s.Busy = ActivityNone
	}
}

// Touch records activity for idle-session expiry.
func (s *Session) Touch() {
	s.LastActive = time.Now()
}

// SetProcedure installs a freshly broken-down procedure. The step pointer,
// chat history and speech state are reset, and the generation counter is
// bumped so completions still in flight for the previous procedure get
// discarded instead of applied.
func (s *Session) SetProcedure(p *Procedure, instructions string) {
	s.Procedure = p
	s.Instructions = instructions
	s.StepIndex = 0
	s.History = nil
	s.PendingSpeech = ""
	s.AudioBase64 = ""
	s.SpeechError = ""
	s.PendingQuery = ""
	s.Generation++
	s.Touch()
}

// CanChat reports whether chat interaction is permitted: both the procedure
// and the instructions that produced it must be present.
func (s *Session) CanChat() bool {
	return s.Procedure != nil && s.Instructions != ""
}

// NextStep advances the step pointer. Past the last step it is a no-op.
func (s *Session) NextStep() {
	if s.Procedure != nil && s.StepIndex < len(s.Procedure.Steps)-1 {
		s.StepIndex++
	}
	s.Touch()
}

// PreviousStep moves the step pointer back. At the first step it is a no-op.
func (s *Session) PreviousStep() {
	if s.StepIndex > 0 {
		s.StepIndex--
	}
	s.Touch()
}

// AppendExchange records one completed exchange: the user turn followed by
// the assistant turn. Prior turns are never reordered or mutated. The reply
// becomes eligible for speech synthesis and replay.
func (s *Session) AppendExchange(query, reply string) {
	s.History = append(s.History,
		Turn{Role: RoleUser, Text: query},
		Turn{Role: RoleAssistant, Text: reply},
	)
	s.PendingSpeech = reply
	s.AudioBase64 = ""
	s.SpeechError = ""
	s.Touch()
}
