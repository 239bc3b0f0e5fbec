package stats

import (
	"context"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"time"
)

const (
	keyName   = "key"
	countName = "count"
	keyPrefix = "kingland:visits:"
)

// Store persists visit counters. Get returns 0 for a key that was never incremented.
type Store interface {
	Increment(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (int64, error)
	Shutdown()
}

// SetupStore selects at most one external store in the order Redis, MongoDB, DynamoDB
// and falls back to an in-memory store when none is enabled.
func SetupStore(ctx context.Context, conf *config.StatsConfig, telemetryReporter telemetry.Reporter, log log.Logger) (Store, error) {
	statsLog := log.WithPrefix("stats")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second) // give 15 sec to spin up the store connection
	defer cancel()

	if conf.Redis.Enabled {
		return newRedis(&conf.Redis, telemetryReporter, statsLog)
	} else if conf.MongoDb.Enabled {
		return newMongoDb(ctx, &conf.MongoDb, telemetryReporter, statsLog)
	} else if conf.DynamoDb.Enabled {
		return newDynamoDb(ctx, &conf.DynamoDb, telemetryReporter, statsLog)
	}
	statsLog.Reportf("using in-memory visit counters")
	return NewInMemoryStore(), nil
}
