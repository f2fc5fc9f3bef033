package services

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid settings needed to reach the
// upstream model service.
type ConfigurationError struct {
	Fields []string
	Msg    string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Msg
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TemplateNotFoundError is returned when the prompt template file is missing.
type TemplateNotFoundError struct {
	Path string
	Err  error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template not found: %s", e.Path)
}

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// UpstreamError covers transport failures, non-success responses and
// malformed completions from the model service.
type UpstreamError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream error: %s: %v", e.Provider, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Provider, e.Msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError wraps filesystem failures in the output directory.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError is returned when an artifact does not exist.
type NotFoundError struct {
	Filename string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("File %s not found", e.Filename)
}

// ValidationError rejects malformed input before any work is done.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ErrorKind classifies err into a short label for metrics and logs.
func ErrorKind(err error) string {
	var (
		cfgErr      *ConfigurationError
		tplErr      *TemplateNotFoundError
		upstreamErr *UpstreamError
		storageErr  *StorageError
		notFound    *NotFoundError
		invalid     *ValidationError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &invalid):
		return "validation"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &tplErr):
		return "template"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &notFound):
		return "not_found"
	default:
		return "error"
	}
}
