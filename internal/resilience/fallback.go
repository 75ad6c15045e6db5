package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result. It wraps the error of every entry tried.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker created for each group entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// EntryStatus reports the breaker state of one group entry.
type EntryStatus struct {
	Name  string
	State State
}

// FallbackGroup is an ordered list of interchangeable backends, each guarded
// by its own [CircuitBreaker]. The first entry is the primary.
//
// Entries must be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry. Entries are tried in the order added.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := fg.cfg.CircuitBreaker
	cb.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Status returns the breaker state of every entry in order.
func (fg *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, EntryStatus{Name: m.name, State: m.breaker.State()})
	}
	return out
}

// Available reports whether any entry's breaker would admit a call.
func (fg *FallbackGroup[T]) Available() bool {
	for _, m := range fg.members {
		if m.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Try calls fn with each entry in order until one succeeds and returns its
// result together with the entry's name. Entries whose breaker is open are
// skipped. Try gives up as soon as ctx is done.
func Try[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range fg.members {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		var out R
		err := m.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			return out, m.name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("fallback: circuit open, skipping", "provider", m.name)
			continue
		}
		slog.Warn("fallback: provider failed, trying next", "provider", m.name, "err", err)
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
