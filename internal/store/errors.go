package store

import "errors"

var (
	// ErrEmptyURL indicates a record without a source URL
	ErrEmptyURL = errors.New("empty_url")
)
