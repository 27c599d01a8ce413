package backend

import (
	"context"

	"cashflow/internal/amqp"
	"cashflow/internal/ledger"
	"cashflow/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store, the optional broker client and the cleanup
// releasing both.
type BackendResult struct {
	Store   ledger.Store
	Broker  *amqp.Client // nil when AMQP is disabled or unreachable
	Cleanup CleanupFunc
}

// Publisher returns the broker as a projection request publisher, or nil without one.
func (r *BackendResult) Publisher() services.Publisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific, optional TOML file of rules
	SeedRulesFile string

	// Broker, optional for both backends
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
