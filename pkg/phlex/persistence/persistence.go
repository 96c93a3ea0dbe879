// Package persistence defines the plugin interface phlex uses to
// write products out and read them back. Implementations own the
// binary-format details; the framework treats payloads as opaque.
package persistence

import (
	"errors"
)

// TechSettings carries technology-specific options for a persistence
// implementation, taken verbatim from the job configuration.
type TechSettings struct {
	// Technology names the backend ("sqlite", "memory", ...).
	Technology string
	// Options are backend-specific knobs.
	Options map[string]string
}

// OutputItem selects one product for writing: which creator's
// container it belongs to and the product label within it.
type OutputItem struct {
	Creator string
	Label   string
}

// Persistence is the plugin contract. Writes accumulate per creator
// until CommitOutput stamps them with a level identifier; Read
// retrieves a committed record together with its type name.
//
// Implementations must be safe for concurrent use: output nodes may
// register writes from multiple worker goroutines.
type Persistence interface {
	// ConfigureTechSettings applies backend options. Called once,
	// before any containers are created.
	ConfigureTechSettings(cfg TechSettings) error

	// ConfigureOutputItems restricts writing to the given items.
	// An empty list means everything offered is written.
	ConfigureOutputItems(items []OutputItem) error

	// CreateContainers declares the label-to-type layout of a
	// creator's output.
	CreateContainers(creator string, products map[string]string) error

	// RegisterWrite buffers one product payload for the creator.
	RegisterWrite(creator, label string, data []byte, typeName string) error

	// CommitOutput atomically persists the creator's buffered writes
	// under the given identifier.
	CommitOutput(creator, id string) error

	// Read retrieves a committed payload and its type name.
	// Returns ErrNotFound if no record exists.
	Read(creator, label, id string) ([]byte, string, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for persistence operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("persistence closed")

	// ErrNoContainer indicates a write for a creator without
	// CreateContainers having been called.
	ErrNoContainer = errors.New("container not created")
)
