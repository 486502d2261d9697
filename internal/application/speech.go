package application

import "context"

// SpeechSynthesizer renders text as audio and returns it base64-encoded
// (audio/mpeg). Missing credentials surface at call time as a configuration
// error, never as a silent no-op.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
