// Package markers persists which voting questions have already been submitted from this
// workstation, so a question is not voted twice after a restart.
package markers

import (
	"fmt"
	"strings"

	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// Driver selects a marker store implementation
type Driver string

const (
	// DriverFile keeps markers in a locked JSON file
	DriverFile Driver = "file"

	// DriverSQLite keeps markers in a SQLite database
	DriverSQLite Driver = "sqlite"

	// DriverMemory keeps markers for the lifetime of the process
	DriverMemory Driver = "memory"
)

// Store is a marker store that owns resources
type Store interface {
	voting.MarkerStore

	// Close releases the store resources
	Close() error
}

// New creates the store for the driver. An empty path uses the default location of the driver.
func New(driver Driver, path string) (Store, error) {
	switch Driver(strings.ToLower(string(driver))) {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported markers driver %q", driver)
	}
}
