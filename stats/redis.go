package stats

import (
	"context"
	"errors"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	redisDb redis.UniversalClient
	log     log.Logger
}

func newRedis(conf *config.RedisConfig, telemetryReporter telemetry.Reporter, log log.Logger) (Store, error) {
	opts := &redis.UniversalOptions{
		Addrs:    conf.Addresses,
		Password: conf.Password,
		DB:       conf.DB,
	}
	if conf.User != "" {
		opts.Username = conf.User
	}
	if conf.Tls.Enabled {
		t, err := conf.Tls.LoadTlsOptions()
		if err != nil {
			log.Errorf("failed to configure TLS for Redis: %s", err)
			return nil, err
		}
		opts.TLSConfig = t
	}
	rdb := redis.NewUniversalClient(opts)
	telemetryReporter.InstrumentRedis(rdb)
	log.Reportf("using Redis for visit counters")
	return &redisStore{
		redisDb: rdb,
		log:     log,
	}, nil
}

func (r *redisStore) Increment(ctx context.Context, key string) error {
	return r.redisDb.Incr(ctx, keyPrefix+key).Err()
}

func (r *redisStore) Get(ctx context.Context, key string) (int64, error) {
	res, err := r.redisDb.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return res, err
}

func (r *redisStore) Shutdown() {
	err := r.redisDb.Close()
	if err != nil {
		r.log.Errorf("shutdown error: %s", err)
	}
	r.log.Reportf("shutdown complete")
}
