package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrEmptyFixID    = errors.New("fix id is empty")
	ErrEmptyColumn   = errors.New("fix column is empty")
	ErrArchiveClosed = errors.New("archive is closed")
)
