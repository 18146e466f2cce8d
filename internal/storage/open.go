package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/platform/config"
	pfirestore "github.com/hanko-field/miniapp/internal/platform/firestore"
)

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Debug("using in-memory storage")
		return NewMemory(), nil
	case config.DriverFile, "":
		dir := cfg.Dir
		if cfg.Namespace != "" {
			dir = filepath.Join(dir, cfg.Namespace)
		}
		logger.Debug("using file storage", zap.String("dir", dir))
		return NewFile(dir)
	case config.DriverRedis:
		return NewRedis(ctx, cfg.Redis, cfg.Namespace, logger)
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		logger.Debug("using firestore storage", zap.String("collection", cfg.Firestore.Collection))
		return NewFirestore(provider, cfg.Firestore.Collection, cfg.Namespace), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
