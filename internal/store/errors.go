package store

import "errors"

var (
	// ErrEmptyName indicates an asset name parameter is missing or empty
	ErrEmptyName = errors.New("empty_name")
)
