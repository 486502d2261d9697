package application

import "context"

// Transcriber converts recorded audio bytes to text. The filename hints the
// container format to the provider ("audio.webm", "recording.wav").
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
