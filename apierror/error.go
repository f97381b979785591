// Package apierror defines the error returned by provider transports when a
// remote API answers with a non-success status.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Error is the type of error returned by a provider transport. It contains
// the HTTP status code so that provider clients can tell a missing resource
// from a failing service.
type Error struct {
	err    error
	status int
}

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// FromResponse creates an Error from a response status and body. The trimmed
// body text becomes the error message. A zero status yields a plain error.
func FromResponse(status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyText {
		cut := maxBodyText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	if text != "" {
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

// maxBodyText limits how much of an error body is kept. Some providers answer
// failures with whole HTML pages.
const maxBodyText = 256

func (e *Error) Error() string {
	if e.status == 0 {
		if e.err != nil {
			return e.err.Error()
		}
		return ""
	}
	return e.Text()
}

func (e *Error) Status() int {
	return e.status
}

// Text returns the status code, status text and message joined together, for
// example "404 Not Found: no such title".
func (e *Error) Text() string {
	parts := make([]string, 0, 5)
	if e.status != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.status))
		text := http.StatusText(e.status)
		if text != "" {
			parts = append(parts, " ")
			parts = append(parts, text)
		}
	}
	if e.err != nil {
		if len(parts) != 0 {
			parts = append(parts, ": ")
		}
		parts = append(parts, e.err.Error())
	}

	return strings.Join(parts, "")
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusOf returns the HTTP status carried by err, or 0 if err does not wrap
// an *Error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status()
	}
	return 0
}

// IsNotFound reports whether err is an *Error with status 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
