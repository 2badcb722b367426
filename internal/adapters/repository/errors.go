package repository

import "errors"

// Sentinel kinds for report storage errors.
var (
	ErrNotFound     = errors.New("report not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrEmptyName    = errors.New("report name is empty")
)
