// Package errs defines the error taxonomy shared across services.
package errs

import "errors"

var (
	// ErrNotFound means a repository, file, or artifact is absent on disk.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the request is missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream means an external API call failed.
	ErrUpstream = errors.New("upstream error")
)
