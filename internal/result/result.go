// Package result defines the explicit outcome every tool returns: a success
// payload or a classified error kind, never a raw exception string.
package result

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os/exec"
	"strings"
)

// Kind classifies a failed operation for the caller.
type Kind string

const (
	KindUnsupportedInput Kind = "unsupported_input"
	KindExternalTool     Kind = "external_tool"
	KindFilesystem       Kind = "filesystem"
	KindComponentInit    Kind = "component_init"
	KindNotFound         Kind = "not_found"
	KindPrecondition     Kind = "precondition"
	KindInternal         Kind = "internal"
)

// Sentinel errors packages wrap so Classify can map them to a Kind.
var (
	ErrUnsupportedInput = errors.New("unsupported input")
	ErrExternalTool     = errors.New("external tool failed")
	ErrFilesystem       = errors.New("filesystem error")
	ErrComponentInit    = errors.New("component failed to initialize")
	ErrNotFound         = errors.New("not found")
	ErrPrecondition     = errors.New("precondition not met")
)

// Error carries the kind and a human message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// Result is the structured outcome of a tool call.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(message string, data map[string]any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Fail builds a failed result from err. A nil err still yields a failure
// with a non-empty message.
func Fail(err error) Result {
	if err == nil {
		return Result{Error: &Error{Kind: KindInternal, Message: "unknown error"}}
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return Result{Error: &Error{Kind: Classify(err), Message: msg}}
}

// Failf builds a failed result of an explicit kind.
func Failf(kind Kind, message string) Result {
	return Result{Error: &Error{Kind: kind, Message: message}}
}

// JSON renders the result for transport. Marshal failures degrade to a
// minimal internal error document.
func (r Result) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return `{"success":false,"error":{"kind":"internal","message":"result encoding failed"}}`
	}
	return string(b)
}

// Classify maps an error chain to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	switch {
	case errors.Is(err, ErrUnsupportedInput):
		return KindUnsupportedInput
	case errors.Is(err, ErrComponentInit):
		return KindComponentInit
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	}

	// Timeouts of external processes surface as context errors.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, exec.ErrNotFound) {
		return KindExternalTool
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return KindExternalTool
	}

	if errors.Is(err, fs.ErrNotExist) {
		return KindNotFound
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrExist) {
		return KindFilesystem
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindFilesystem
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "read-only file system") {
		return KindFilesystem
	}
	return KindInternal
}
