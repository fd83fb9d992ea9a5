package backend

import (
	"errors"
	"fmt"
	"slices"

	"envelopes/internal/config"
)

// FromAppConfig picks the ledger store named by DATA_BACKEND.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("backend: no application config")
	}
	c := Config{Type: BackendType(appConfig.DataBackend), SQLiteDBPath: appConfig.SQLiteDBPath}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("DATA_BACKEND %q: %w", appConfig.DataBackend, ErrUnknownBackend)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("%q: %w", c.Type, ErrUnknownBackend)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return ErrMissingDBPath
	}
	return nil
}

// GetBackendTypes lists the stores a ledger can be kept in.
func GetBackendTypes() []BackendType {
	return slices.Clone(backendTypes)
}
