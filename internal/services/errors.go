package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying pipeline failures. Wrap tags errors with one of
// these so callers can route on errors.Is without string matching.
var (
	ErrValidation    = errors.New("validation error")
	ErrMediaTool     = errors.New("media tool error")
	ErrAlgorithm     = errors.New("algorithm error")
	ErrTransport     = errors.New("transport error")
	ErrTimeout       = errors.New("timeout")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrMediaTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage extracts a presentable failure message from a wrapped error.
// The sentinel prefix is stripped so job records carry the operator-facing
// detail rather than the classification tag.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrValidation, ErrMediaTool, ErrAlgorithm, ErrTransport, ErrTimeout, ErrConfiguration} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(message, prefix))
		}
	}
	return message
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
