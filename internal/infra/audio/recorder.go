//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Recorder captures microphone audio via portaudio between Start and Stop.
type Recorder struct {
	sampleRate int
	logger     *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
	frames []int16
	stop   chan struct{}
	done   chan struct{}
}

func NewRecorder(sampleRate int, logger *slog.Logger) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		logger:     logger,
	}
}

func (r *Recorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return fmt.Errorf("recording already in progress")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	inputChannels := 1
	outputChannels := 0
	framesPerBuffer := 1024

	r.buffer = make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(
		inputChannels,
		outputChannels,
		float64(r.sampleRate),
		framesPerBuffer,
		r.buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	r.stream = stream
	r.frames = r.frames[:0]
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.capture(stream, r.stop, r.done)

	r.logger.Info("microphone capture started", "sample_rate", r.sampleRate)
	return nil
}

func (r *Recorder) capture(stream *portaudio.Stream, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			r.logger.Warn("reading from stream", "error", err)
			return
		}

		r.mu.Lock()
		r.frames = append(r.frames, r.buffer...)
		r.mu.Unlock()
	}
}

// Stop finalizes the capture and returns the recording as WAV bytes. The
// stream and the portaudio device are released on every path.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.stream == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("no recording in progress")
	}
	stream := r.stream
	stop := r.stop
	done := r.done
	r.stream = nil
	r.mu.Unlock()

	close(stop)
	<-done

	stream.Stop()
	stream.Close()
	portaudio.Terminate()

	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	r.mu.Unlock()

	r.logger.Info("microphone capture stopped", "samples", len(frames))
	return encodeWAV(frames, r.sampleRate), nil
}
