package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatalAPI marks provider errors that will not go away on retry
	// (bad credentials, exhausted quota or billing problems).
	ErrFatalAPI = errors.New("fatal API error")

	// ErrUnsupportedProvider is returned for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrDimensionMismatch is returned when a provider produces vectors of
	// a different length than the index expects.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}

// IsFatal reports whether err should stop retries.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalAPI) || isFatalAPIError(err)
}
