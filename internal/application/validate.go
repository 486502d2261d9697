package application

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	minInstructionsLen = 10
	maxInstructionsLen = 5000
	maxQueryLen        = 1000
	maxSpeechLen       = 1000
)

// FieldErrors maps an input field name to its validation messages.
type FieldErrors map[string][]string

// ValidationError reports field-level problems with user input. No external
// call is made when validation fails, and the caller re-surfaces the original
// input so the form can be repopulated.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid input: " + strings.Join(names, ", ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: {msg}}}
}

// ValidateInstructions checks a breakdown submission.
func ValidateInstructions(instructions string) error {
	n := utf8.RuneCountInString(instructions)
	switch {
	case n < minInstructionsLen:
		return fieldError("instructions",
			fmt.Sprintf("Instructions must be at least %d characters long.", minInstructionsLen))
	case n > maxInstructionsLen:
		return fieldError("instructions",
			fmt.Sprintf("Instructions cannot exceed %d characters.", maxInstructionsLen))
	}
	return nil
}

// ValidateQuery checks a chat submission.
func ValidateQuery(query string) error {
	n := utf8.RuneCountInString(query)
	switch {
	case n == 0:
		return fieldError("query", "Query cannot be empty.")
	case n > maxQueryLen:
		return fieldError("query", "Query is too long.")
	}
	return nil
}

// ValidateSpeechText checks text submitted for speech synthesis.
func ValidateSpeechText(text string) error {
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return fieldError("text", "Text cannot be empty.")
	case n > maxSpeechLen:
		return fieldError("text", "Text is too long for speech generation.")
	}
	return nil
}

// ValidateAudioPayload checks a base64-encoded recording.
func ValidateAudioPayload(audioBase64 string) error {
	if audioBase64 == "" {
		return fieldError("audio", "Audio data cannot be empty.")
	}
	return nil
}
