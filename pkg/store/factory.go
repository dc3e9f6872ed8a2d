package store

import (
	"context"
	"fmt"
)

const (
	PersistenceMemory = "memory"
	PersistenceFile   = "file"
	PersistenceMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	DataDir string
	Mongo   MongoConfig
}

// New opens a Store for the given persistence type.
func New(ctx context.Context, persistenceType string, cfg Config) (*Store, error) {
	switch persistenceType {
	case PersistenceMemory, "":
		return NewMemoryStore(), nil
	case PersistenceFile:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data directory is required for file persistence")
		}
		return NewFileStore(cfg.DataDir)
	case PersistenceMongo:
		if cfg.Mongo.URI == "" {
			return nil, fmt.Errorf("mongo uri is required for mongo persistence")
		}
		return NewMongoStore(ctx, cfg.Mongo)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", persistenceType)
	}
}
