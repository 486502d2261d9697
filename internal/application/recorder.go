package application

import "context"

// Recorder captures audio from the local microphone. Start acquires the
// device and begins accumulating chunks; Stop finalizes the capture, returns
// the encoded audio and releases the device on every path, including errors.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}
