package backend

import (
	"context"
	"errors"
	"slices"

	"envelopes/internal/store"
)

var (
	ErrUnknownBackend = errors.New("unknown data backend")
	ErrMissingDBPath  = errors.New("sqlite backend needs a database path")
)

// BackendType names where the ledger is kept.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

var backendTypes = []BackendType{SQLiteBackend, MemoryBackend}

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool { return slices.Contains(backendTypes, bt) }

// Config selects a ledger store. SQLiteDBPath is read only by the sqlite
// backend.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// CleanupFunc releases whatever the store holds open.
type CleanupFunc func() error

// BackendResult is an opened ledger store. Cleanup must be called once the
// store is no longer used.
type BackendResult struct {
	Store   store.Store
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
