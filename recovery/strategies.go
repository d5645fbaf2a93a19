package recovery

import (
	"fmt"
	"log/slog"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy implements a best-effort recovery strategy: it logs each
// fault at Warn level via slog, accumulates it, and tells the caller to
// keep going rather than abort the parse.
type LenientStrategy struct {
	Logger *slog.Logger
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{Logger: slog.Default()}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	wrapped := fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err)
	s.Errors = append(s.Errors, wrapped)
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("recovering from parse fault",
		"component", location.Component,
		"offset", location.ByteOffset,
		"object", location.ObjectNum,
		"generation", location.ObjectGen,
		"error", err)
	return ActionWarn
}
