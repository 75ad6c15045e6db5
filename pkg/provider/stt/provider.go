// Package stt defines the Provider interface for streaming Speech-to-Text
// backends.
//
// A provider wraps a real-time transcription service and exposes a uniform
// streaming interface. Once opened, a SessionHandle accepts raw PCM audio
// frames and emits two streams of Transcript values: interim partials and
// authoritative finals. The form-filling pipeline only ever consumes finals.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// DefaultLanguage is the recognition language used when StreamConfig.Language
// is empty. Travel plans are spoken in Mandarin.
const DefaultLanguage = "zh-CN"

// ErrNotSupported is returned by optional SessionHandle operations that the
// backing provider cannot perform.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz, typically 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition. Empty means
	// DefaultLanguage.
	Language string

	// Keywords are vocabulary hints, usually destination names that the
	// recogniser would otherwise mishear.
	Keywords []KeywordBoost
}

// LanguageOrDefault returns c.Language, or DefaultLanguage when unset.
func (c StreamConfig) LanguageOrDefault() string {
	if c.Language == "" {
		return DefaultLanguage
	}
	return c.Language
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim Transcript values. The channel is closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals emits authoritative Transcript values. The channel is closed
	// when the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the active keyword list without restarting the
	// session. Providers that cannot do this return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close flushes pending audio and releases all resources. After Close
	// returns, Partials and Finals are closed. Calling Close more than once
	// is safe.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. The caller
	// owns the returned SessionHandle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
