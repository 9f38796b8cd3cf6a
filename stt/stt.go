package stt

import "context"

// Result is the transcript for one audio file.
type Result struct {
	Text string
	// Duration of the source audio in seconds, when the engine reports it.
	Duration float64
}

// Transcriber converts an audio file into plain text. Implementations may
// be slow and may fail; callers treat this as an opaque boundary.
type Transcriber interface {
	Transcribe(
		ctx context.Context,
		path string,
		language string,
	) (Result, error)
}
