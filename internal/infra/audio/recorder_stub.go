//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra"
)

// Recorder stub when portaudio is not compiled in. Server-side capture is
// unavailable; browser-recorded audio still flows through the transcribe
// endpoint.
type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(_ int, logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) Start(_ context.Context) error {
	return fmt.Errorf("microphone capture (rebuild with -tags portaudio): %w", infra.ErrNotConfigured)
}

func (r *Recorder) Stop() ([]byte, error) {
	return nil, fmt.Errorf("microphone capture (rebuild with -tags portaudio): %w", infra.ErrNotConfigured)
}
