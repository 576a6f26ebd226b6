package jailapi

import (
	"errors"
	"net/http"
	"slices"
)

var (
	// ErrUnauthorized is returned for HTTP 401 on an authenticated call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoToken is returned when a login reply carries no token.
	ErrNoToken = errors.New("No token received")
)

// Error is a request or business failure reported by the server. Message is
// the server's own text and is meant to be shown verbatim.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// reply is the envelope shared by the mutation endpoints.
type reply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// check turns an error field, or a status outside accept, into an *Error.
// With no accept values only the error field is inspected.
func (r reply) check(accept ...string) error {
	if r.Error != "" {
		return &Error{StatusCode: http.StatusOK, Message: r.Error}
	}
	if len(accept) == 0 || slices.Contains(accept, r.Status) {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return &Error{StatusCode: http.StatusOK, Message: msg}
}

// Message extracts the text to show an operator for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
