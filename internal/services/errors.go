package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for pipeline failure classification. Every error that
// crosses a component boundary is wrapped with exactly one of these so the
// reporter can surface a specific kind to the caller.
var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolTimeout       = errors.New("tool timeout")
	ErrToolCrashed       = errors.New("tool crashed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptPage       = errors.New("corrupt page")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrBusy              = errors.New("queue busy")
	ErrCancelled         = errors.New("job cancelled")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrToolCrashed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its reporter-facing classification string.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrToolNotFound):
		return "tool_not_found"
	case errors.Is(err, ErrToolTimeout):
		return "tool_timeout"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrCorruptPage):
		return "corrupt_page"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "tool_crashed"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
