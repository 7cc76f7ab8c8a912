package dispatch

import (
	"context"
	"errors"

	"github.com/novy-bridge/internal/codes"
	"github.com/novy-bridge/internal/transceiver"
)

// Result codes reported to callers.
const (
	CodeOK            = "OK"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidLength = "INVALID_LENGTH"
	CodeBusy          = "BUSY"
	CodeHardwareFault = "HARDWARE_FAULT"
	CodeUnavailable   = "UNAVAILABLE"
	CodeInternal      = "INTERNAL"
)

// Code maps an error returned by the dispatcher to its result code.
func Code(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, codes.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, codes.ErrInvalidLength):
		return CodeInvalidLength
	case errors.Is(err, transceiver.ErrBusy):
		return CodeBusy
	case errors.Is(err, transceiver.ErrHardwareFault):
		return CodeHardwareFault
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
