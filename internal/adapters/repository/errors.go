package repository

import (
	"errors"

	"github.com/okian/spms/internal/domain/winners"
)

// Sentinel kinds for store errors. ErrNotFound and ErrConflict are the
// resolver's port errors so callers can match either name.
var (
	ErrNotFound          = winners.ErrNotFound
	ErrConflict          = winners.ErrConflict
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidArgument   = errors.New("invalid argument")
)
