package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoUser is returned when an operation needs a signed-in user id.
	ErrNoUser = errors.New("no valid user id")
)

// ErrorKind is a coarse classification of identity provider failures.
type ErrorKind int

const (
	// KindUnknown is any failure not covered by the other kinds.
	KindUnknown ErrorKind = iota
	// KindNetwork is a transport failure: the provider was never reached.
	KindNetwork
	// KindAuth is a rejection of credentials, tokens or input by the provider.
	KindAuth
	// KindRateLimit is an explicit rate-limit answer (HTTP 429).
	KindRateLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// ProviderError is the error type returned at the identity provider boundary.
type ProviderError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	// Body is the decoded response payload, kept for message extraction.
	Body any
	Err  error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("identity provider %s error (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("identity provider %s error: %s", e.Kind, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
