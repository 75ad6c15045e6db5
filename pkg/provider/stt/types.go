package stt

import "time"

// Transcript is a speech-to-text result. Partial and final results share this
// type.
type Transcript struct {
	// Text is the transcribed speech.
	Text string

	// IsFinal marks an authoritative result.
	IsFinal bool

	// Confidence is the overall confidence score in [0, 1]. Zero when the
	// provider does not report one.
	Confidence float64

	// Words holds per-word detail when the provider reports it.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word timing and confidence.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a recognition hint with a provider-specific intensity.
type KeywordBoost struct {
	Keyword string
	Boost   float64
}
