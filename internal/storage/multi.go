package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// MultiStorage writes every batch to each backend in turn. A failing backend
// does not keep the batch from the others.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage fans out to backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(items []*types.Item) error {
	return s.each("store", func(b Storage) error { return b.Store(items) })
}

func (s *MultiStorage) Close() error {
	return s.each("close", Storage.Close)
}

func (s *MultiStorage) each(op string, fn func(Storage) error) error {
	var errs []error
	for _, b := range s.backends {
		if err := fn(b); err != nil {
			s.logger.Error("backend failed", "op", op, "backend", b.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &types.StorageError{Backend: s.Name(), Err: errors.Join(errs...)}
}
