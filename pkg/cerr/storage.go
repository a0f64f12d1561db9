package cerr

import (
	"errors"
	"fmt"

	"github.com/wronai/taskguard/pkg/storage"
)

func WrapStorageReadError(resource string, err error) *Error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", resource), err)
	}
	return NewError(Internal, "storage error", fmt.Errorf("failed to read %s: %w", resource, err))
}

func WrapStorageWriteError(resource string, err error) *Error {
	return NewError(Internal, "storage error", fmt.Errorf("failed to write %s: %w", resource, err))
}
