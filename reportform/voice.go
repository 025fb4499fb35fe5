package reportform

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Transcriber turns captured audio into text for the description.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, label string) (string, error)
}

// LabelTranscriber does no speech recognition: it drains the audio and
// returns a bracketed placeholder carrying the label.
type LabelTranscriber struct{}

func (LabelTranscriber) Transcribe(ctx context.Context, audio io.Reader, label string) (string, error) {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label = strings.TrimSpace(strings.TrimSuffix(label, filepath.Ext(label)))
	if label == "" {
		label = "audio attached"
	}
	return fmt.Sprintf("[Voice note: %s]", label), nil
}

// Capture runs the transcriber under a deadline. The transcriber runs in its
// own goroutine so a transcriber that ignores its context still cannot hold
// the request past timeout.
func Capture(ctx context.Context, t Transcriber, audio io.Reader, label string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := t.Transcribe(ctx, audio, label)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("voice note capture: %w", ctx.Err())
	}
}
