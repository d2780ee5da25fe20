package main

import (
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/pkg/adapters/file"
	"github.com/aretw0/stepbnb/pkg/adapters/memory"
	"github.com/aretw0/stepbnb/pkg/adapters/redis"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// backends holds the trace store and, with Redis, the locker shared by replicas.
// Redis wins over a trace directory; with neither, traces live in memory.
type backends struct {
	traces ports.TraceStore
	locker ports.Locker
	client *backend.Client
}

func openBackends(cfg *config.Config, logger *slog.Logger) *backends {
	rc := cfg.Server.Redis
	if rc.Addr == "" {
		if cfg.TraceDir != "" {
			logger.Info("Using trace directory", "dir", cfg.TraceDir)
			return &backends{traces: file.New(cfg.TraceDir)}
		}
		return &backends{traces: memory.NewStore()}
	}
	client := backend.NewClient(&backend.Options{Addr: rc.Addr})
	logger.Info("Using Redis", "addr", rc.Addr, "prefix", rc.Prefix)
	return &backends{
		traces: redis.NewFromClient(client, redis.WithPrefix(rc.Prefix+"trace:"), redis.WithTTL(rc.TraceTTL)),
		locker: redis.NewLocker(client, rc.Prefix),
		client: client,
	}
}

func (b *backends) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}
