// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/gympro/internal/app/system/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds back-end clients and the long-lived state built alongside
// them. Redis is nil when no redis_addr is configured.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Redis         *redis.Client

	LoginLimiter *ratelimit.LoginLimiter
}
