package eventlog

import (
	"fmt"

	"github.com/brianly1003/msgboard/internal/domain/ports"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open returns the event log for driver. path is used by the sqlite driver.
func Open(driver, path string) (ports.EventLog, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
