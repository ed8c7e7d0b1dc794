package cerr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kazz187/taskpulse/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "storage error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	return NewError(Internal, "storage error", fmt.Errorf("failed to write %s: %w", target, err))
}

// WrapDBError converts a database/sql failure. sql.ErrNoRows becomes NotFound,
// everything else is a backend fault.
func WrapDBError(target string, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "database error", fmt.Errorf("failed to %s %s: %w", op, target, err))
}
