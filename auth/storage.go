package auth

import (
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/sessions"
	"github.com/jrsteele09/go-console-session/sessions/filestore"
	"github.com/jrsteele09/go-console-session/sessions/redisstore"
	"github.com/jrsteele09/go-console-session/sessions/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Storage backends selectable in config
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// OpenStorage builds the configured session storage. The returned func
// releases it and is never nil.
func OpenStorage(cfg config.SessionConfig, logger zerolog.Logger) (sessions.Storage, func(), error) {
	switch cfg.GetStorage() {
	case StorageMemory:
		return repofake.NewFakeStorage(), func() {}, nil

	case StorageFile, "":
		storage, err := filestore.New(cfg.GetStorageFile(), filestore.WithHexKey(cfg.GetStorageKey()))
		if err != nil {
			return nil, nil, errors.Wrap(err, "[OpenStorage] file")
		}
		logger.Debug().Str("path", cfg.GetStorageFile()).Bool("sealed", cfg.GetStorageKey() != "").Msg("file session storage")
		return storage, func() {}, nil

	case StorageRedis:
		storage := redisstore.New(redisstore.Config{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetRedisPrefix(),
		}, logger)
		return storage, storage.Close, nil
	}
	return nil, nil, errors.Errorf("[OpenStorage] unknown storage %q", cfg.GetStorage())
}
