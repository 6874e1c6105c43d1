package repository

import "errors"

// This file defines custom errors specific to the repository layer.
// This allows the repository to communicate outcomes in a database-agnostic way.

// ErrNotFound is a repository-specific sentinel error. It is returned when a
// query for a single entity (e.g., GetConversation) finds nothing.
//
// The store and services translate it into `app_errors.ErrNotFound`, which keeps
// the underlying driver's error (`sql.ErrNoRows`, `redis.Nil`) out of the core.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidRole is returned when a message role cannot be stored.
var ErrInvalidRole = errors.New("repository: invalid message role")
