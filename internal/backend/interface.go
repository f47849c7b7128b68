package backend

import (
	"context"

	"gestion/internal/records"
	"gestion/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is an opened record store with its optional change notifier.
type Result struct {
	Store records.Store
	// Notifier is nil when AMQP is not configured or unreachable.
	Notifier services.Notifier
	// Ready reports whether the store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory opens backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
