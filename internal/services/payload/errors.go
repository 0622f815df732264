package payload

import (
	"errors"

	"portseal/internal/domain"
)

// failureClass names the kind of decrypt failure for logs.
func failureClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionTerminated):
		return "terminated"
	case errors.Is(err, domain.ErrSkipWindowExceeded):
		return "skip_window"
	case errors.Is(err, domain.ErrReplayedOrUnknownMessage):
		return "replay"
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return "authentication"
	case errors.Is(err, domain.ErrUnsupportedVersion):
		return "version"
	}
	return "other"
}
