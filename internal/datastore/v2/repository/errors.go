package repository

import "github.com/tphakala/sentinel/internal/errors"

// ErrNotFound is returned (wrapped) when a row does not exist.
var ErrNotFound = errors.NewStd("record not found")
