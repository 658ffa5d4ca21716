package providers

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisProvider builds the client backing the rate limiter. Timeouts
// are kept short: the limiter fails open, so a slow Redis should degrade
// to unlimited rather than stall requests.
func NewRedisProvider(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 500 * time.Millisecond,
	})
}
