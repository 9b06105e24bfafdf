package bcibridge

import "errors"

// Errors reported by the montage, controller and sinks. Callers match them with errors.Is;
// most are wrapped with context before they reach the operator.
var (
	ErrInvalidChannelCount = errors.New("invalid channel count")
	ErrMontageSizeMismatch = errors.New("montage size mismatch")
	ErrAlreadyRunning      = errors.New("acquisition already running")
	ErrStreamingConflict   = errors.New("the board is currently streaming data, please type '/stop' before issuing new commands")
	ErrNotStreaming        = errors.New("the board is not streaming")
	ErrUnknownTestSignal   = errors.New("unknown test signal")
	ErrSinkUnavailable     = errors.New("stream sink unavailable")
	ErrUnknownSetting      = errors.New("unknown board setting")
)
