package errors

import (
	"errors"
	"fmt"
)

var (
	// Resolver errors
	ErrAddressResolution = errors.New("failed to resolve public address")

	// Negotiation errors
	ErrPunchTimeout     = errors.New("hole punch timed out")
	ErrRelayUnavailable = errors.New("no relay server available")
	ErrNoListener       = errors.New("no inbound connection received")
	ErrAllMethodsFailed = errors.New("all connection methods failed")

	// Session errors
	ErrTransportClosed = errors.New("transport is closed")
	ErrSessionEnded    = errors.New("session ended")
)

func Wrap(step error, err error) error {
	return fmt.Errorf("%w: %w", step, err)
}
