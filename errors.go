package goBlog

import (
	"errors"

	"github.com/MrEthical07/goBlog/session"
)

var (
	// ErrLoginRequired is returned by Protect when the guard redirects to login.
	ErrLoginRequired = errors.New("login required")
	// ErrInvalidCredentials is returned when login input fails validation or the API rejects it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnexpectedResponse is returned when a login or signup response lacks the viewer or token.
	ErrUnexpectedResponse = errors.New("unexpected response from blog API")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrStorageUnavailable is returned when persisted storage cannot be read or written.
	ErrStorageUnavailable = session.ErrStorageUnavailable
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidRating is returned by Rate for values outside the accepted range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrEmptyComment is returned by AddComment for blank content.
	ErrEmptyComment = errors.New("comment content is empty")
)
