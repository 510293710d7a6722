// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownWorker indicates a worker ID with no registered implementation.
var ErrUnknownWorker = errors.New("unknown worker")

// ErrValidation indicates a request that fails domain validation.
var ErrValidation = errors.New("validation failed")
